package domain

const (
	ConfigAPIKey    = "API_KEY"
	ConfigAPITokens = "API_TOKENS"
)

type Config struct {
	Code  string `json:"code" bson:"code"`
	Value any    `json:"value" bson:"value"`
}
