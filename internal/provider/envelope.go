package provider

import "time"

// ResponseMeta carries continuation state and failure detail alongside an
// envelope. Cursor/Token/Model feed the next turn's provider context.
type ResponseMeta struct {
	Cursor    string `json:"cursor,omitempty"`
	Token     string `json:"token,omitempty"`
	ModelName string `json:"modelName,omitempty"`
	Model     string `json:"model,omitempty"`

	Error      string `json:"error,omitempty"`
	Details    string `json:"details,omitempty"`
	Suppressed bool   `json:"suppressed,omitempty"`
}

// Response is the uniform envelope every terminal adapter operation returns.
type Response struct {
	ProviderID string       `json:"providerId"`
	OK         bool         `json:"ok"`
	Text       string       `json:"text,omitempty"`
	Partial    bool         `json:"partial,omitempty"`
	LatencyMS  int64        `json:"latencyMs"`
	ErrorCode  string       `json:"errorCode,omitempty"`
	Meta       ResponseMeta `json:"meta,omitempty"`
}

// Failure builds the ok:false envelope for a classified provider error.
func Failure(providerID string, start time.Time, cls Classification, details string) Response {
	return Response{
		ProviderID: providerID,
		OK:         false,
		LatencyMS:  sinceMS(start),
		ErrorCode:  cls.Type,
		Meta: ResponseMeta{
			Error:      cls.Type,
			Details:    details,
			Suppressed: cls.Suppressed,
		},
	}
}
