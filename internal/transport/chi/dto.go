package chi

// ErrorResponseCode is the machine-readable error code of an API response.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest             ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized           ErrorResponseCode = "unauthorized"
	ErrorResponseCodeValidationFailed       ErrorResponseCode = "validation_failed"
	ErrorResponseCodeEmbeddingProviderError ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeRetrievalFailed        ErrorResponseCode = "retrieval_failed"
	ErrorResponseCodeGenerationFailed       ErrorResponseCode = "generation_failed"
	ErrorResponseCodeInternalError          ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response except a failed answer.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	Query     string   `json:"query"`
	Threshold *float64 `json:"threshold,omitempty"`
	Count     int      `json:"count,omitempty"`
	Domain    string   `json:"domain,omitempty"`
	Language  string   `json:"language,omitempty"`
}

// Chunk is one retrieved chunk.
type Chunk struct {
	ID            string  `json:"id"`
	DocumentID    string  `json:"document_id"`
	Content       string  `json:"content"`
	Language      string  `json:"language"`
	Domain        string  `json:"domain,omitempty"`
	ArticleNumber string  `json:"article_number,omitempty"`
	DocumentTitle string  `json:"document_title,omitempty"`
	OfficialRef   string  `json:"official_ref,omitempty"`
	Score         float64 `json:"score"`
}

// RetrieveResponse is the body of a successful retrieval.
type RetrieveResponse struct {
	Chunks []Chunk `json:"chunks"`
}

// AnswerRequest is the body of POST /v1/answer.
type AnswerRequest struct {
	Query    string `json:"query"`
	Language string `json:"language,omitempty"`
}

// Citation points an answer back to its source.
type Citation struct {
	Source     string   `json:"source"`
	Article    string   `json:"article,omitempty"`
	Reference  string   `json:"reference"`
	URL        string   `json:"url,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// AnswerResponse is the body of POST /v1/answer. On failure Answer carries
// the apology and ErrorKind says which stage failed.
type AnswerResponse struct {
	Answer              string     `json:"answer"`
	Citations           []Citation `json:"citations"`
	Language            string     `json:"language"`
	Direction           string     `json:"direction"`
	RetrievedChunkCount int        `json:"retrieved_chunk_count"`
	Domain              *string    `json:"domain"`
	ErrorKind           string     `json:"error_kind,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
