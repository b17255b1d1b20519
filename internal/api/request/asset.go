package request

// CreateAssetRequest represents the request body for creating an asset
type CreateAssetRequest struct {
	Class string `json:"class"`
	Code  string `json:"code"`
	Name  string `json:"name"`
}
