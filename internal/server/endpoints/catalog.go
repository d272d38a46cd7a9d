package endpoints

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carepill/pillscan/internal/api"
	"github.com/carepill/pillscan/internal/catalog"
	"github.com/carepill/pillscan/internal/svcctx"
)

// CatalogSearchResponse is the response for GET /api/catalog/search.
type CatalogSearchResponse struct {
	Query   string          `json:"query"`
	Matches []catalog.Entry `json:"matches"`
	Count   int             `json:"count"`
}

// CatalogSearchEndpoint handles GET /api/catalog/search. It runs the same
// tiered matching the scan pipeline uses, so clients can preview what a
// medicine name would resolve to.
type CatalogSearchEndpoint struct{}

func (e *CatalogSearchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/catalog/search", e.handler
}

func (e *CatalogSearchEndpoint) RequiresInit() bool { return true }

func (e *CatalogSearchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	store := svcctx.CatalogFrom(r.Context())
	matches, err := store.Find(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		matches = []catalog.Entry{}
	}
	writeJSON(w, http.StatusOK, CatalogSearchResponse{Query: query, Matches: matches, Count: len(matches)})
}

func (e *CatalogSearchEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog <name>",
		Short: "Search the medicine catalog by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CatalogSearchResponse
			path := "/api/catalog/search?q=" + url.QueryEscape(args[0])
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
