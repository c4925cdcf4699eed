package handler

type AcceptedResponse struct {
	Accepted int `json:"accepted"`
}
