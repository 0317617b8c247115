package main

// CreateTextRequest is the payload for POST /texts.
type CreateTextRequest struct {
	Content *string `json:"content"`
}

// UpdateTextRequest is the payload for PUT /texts/{id}.
type UpdateTextRequest struct {
	Content *string `json:"content"`
}

// errorResponse is the body of every failed bridge request.
type errorResponse struct {
	Error string `json:"error"`
}

// changeEvent is pushed to websocket clients when the stored texts change.
type changeEvent struct {
	Type string `json:"type"`
}

const eventTextsChanged = "texts_changed"
