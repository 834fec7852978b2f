package qtsp

import "github.com/dmitrijs2005/truecam/internal/client/models"

// TokenResponse is the client-credentials grant result.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

type CreateCaseRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Actors      []string `json:"actors"`
}

type CreateGroupRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type EvidenceMetadata struct {
	Location *models.Location `json:"location,omitempty"`
}

type RegisterEvidenceRequest struct {
	ID       string           `json:"id"`
	FileName string           `json:"fileName"`
	FileSize int64            `json:"fileSize"`
	Hash     string           `json:"hash"`
	Metadata EvidenceMetadata `json:"metadata"`
}

type idResponse struct {
	ID string `json:"id"`
}

type uploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details"`
	Message string `json:"message"`
}
