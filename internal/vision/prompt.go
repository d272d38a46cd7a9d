package vision

// systemPrompt pins the model into strict-JSON extraction mode.
const systemPrompt = "너는 한국 약봉투 OCR/정보추출 전문가다. 반드시 유효한 JSON만 출력한다. " +
	"사진에 없는 정보는 공란('')으로 남긴다."

// envelopePrompt describes the exact JSON shape expected from one photo.
// One envelope may carry several medicines, so they go in an array.
const envelopePrompt = "다음 약봉투 이미지를 분석하여 아래 스키마의 정확한 JSON만 출력하세요.\n" +
	"가능하면 숫자/날짜는 포맷을 맞추세요.\n" +
	"{\n" +
	"  \"patient_name\": \"환자명(문자열)\",\n" +
	"  \"age\": \"나이(숫자 또는 빈 문자열)\",\n" +
	"  \"dispense_date\": \"조제일자(YYYY-MM-DD 또는 YYYY.MM.DD)\",\n" +
	"  \"pharmacy_name\": \"약국명\",\n" +
	"  \"hospital_name\": \"병원명(있는 경우)\",\n" +
	"  \"prescription_number\": \"처방전 또는 조제 번호\",\n" +
	"  \"medicines\": [\n" +
	"    {\n" +
	"      \"medicine_name\": \"약품명\",\n" +
	"      \"dosage_instructions\": \"복용법(예: 아침, 저녁, 취침 전)\",\n" +
	"      \"frequency\": \"복용횟수/기간(예: 1일 1회 총 30일분)\"\n" +
	"    }\n" +
	"  ],\n" +
	"  \"med_features\": {\n" +
	"    \"description\": \"약의 한줄 설명\",\n" +
	"    \"indications\": \"어디에 좋은지(적응증)\",\n" +
	"    \"cautions\": \"주의사항(상호작용/부작용/주의대상 간단 요약)\"\n" +
	"  }\n" +
	"}\n" +
	"주의: 오타를 피하고, 사진 속 정보만 사용하세요. 모를 경우 빈 문자열로 두세요. " +
	"설명 문장이나 코드펜스 없이 JSON만 출력합니다."
