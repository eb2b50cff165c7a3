package httpapi

// Response is the envelope shared by every endpoint:
// {status: "success"|"error", message: string, data?: any}
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func Success(message string, data any) Response {
	return Response{Status: "success", Message: message, Data: data}
}

func Fail(message string) Response {
	return Response{Status: "error", Message: message}
}
