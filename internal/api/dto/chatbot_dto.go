package dto

// ChatbotRequest is a help question.
type ChatbotRequest struct {
	Message string `json:"message"`
}

// ChatbotResponse carries the answer and whether it came from the assistant or the built-in replies.
type ChatbotResponse struct {
	Response string `json:"response"`
	Source   string `json:"source"`
}
