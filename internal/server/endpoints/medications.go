package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carepill/pillscan/internal/api"
	"github.com/carepill/pillscan/internal/meds"
	"github.com/carepill/pillscan/internal/svcctx"
)

// MedicationListResponse is the response for GET /api/medications.
type MedicationListResponse struct {
	Medications []meds.Record `json:"medications"`
	Count       int           `json:"count"`
}

// ListMedicationsEndpoint handles GET /api/medications.
type ListMedicationsEndpoint struct{}

func (e *ListMedicationsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/medications", e.handler
}

func (e *ListMedicationsEndpoint) RequiresInit() bool { return true }

func (e *ListMedicationsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	store := svcctx.MedsFrom(r.Context())
	records, err := store.ListActive(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []meds.Record{}
	}
	writeJSON(w, http.StatusOK, MedicationListResponse{Medications: records, Count: len(records)})
}

func (e *ListMedicationsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "medications",
		Short: "List a user's active medications",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp MedicationListResponse
			path := "/api/medications?user_id=" + url.QueryEscape(userID)
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.MarkFlagRequired("user")
	return cmd
}

// CompleteMedicationEndpoint handles POST /api/medications/{id}/complete.
type CompleteMedicationEndpoint struct{}

func (e *CompleteMedicationEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/medications/{id}/complete", e.handler
}

func (e *CompleteMedicationEndpoint) RequiresInit() bool { return true }

func (e *CompleteMedicationEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	store := svcctx.MedsFrom(r.Context())

	ok, err := store.Complete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "medication not found")
		return
	}

	rec, err := store.Get(r.Context(), id)
	if err != nil || rec == nil {
		writeError(w, http.StatusInternalServerError, "medication updated but could not be read back")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (e *CompleteMedicationEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a medication as finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var rec meds.Record
			path := "/api/medications/" + url.PathEscape(args[0]) + "/complete"
			if err := client.Post(cmd.Context(), path, nil, &rec); err != nil {
				return err
			}
			return api.Output(rec)
		},
	}
}

// DeleteMedicationEndpoint handles DELETE /api/medications/{id}.
type DeleteMedicationEndpoint struct{}

func (e *DeleteMedicationEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/medications/{id}", e.handler
}

func (e *DeleteMedicationEndpoint) RequiresInit() bool { return true }

func (e *DeleteMedicationEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	store := svcctx.MedsFrom(r.Context())

	ok, err := store.Delete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "medication not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

func (e *DeleteMedicationEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a medication from the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/medications/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
}
