package dto

type ErrorResponse struct {
	Error               string `json:"error"`
	Field               string `json:"field,omitempty"`
	RequestID           string `json:"request_id,omitempty"`
	ManualEntryRequired bool   `json:"manual_entry_required,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type ListResponse struct {
	Items  any `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ExtractionResponse struct {
	ExtractedData any `json:"extracted_data"`
}
