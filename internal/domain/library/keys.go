package library

// Storage keys, one JSON document per key and tenant.
const (
	KeyQuestions      = "extractedQuestions"
	KeyTopics         = "commonTopics"
	KeyRecentResults  = "recentResults"
	KeySavedNotes     = "savedNotes"
	KeyChatSessions   = "chatSessions"
	KeyUsers          = "users"
	KeyCurrentUser    = "currentUser"
	keyAnalysisPrefix = "analysisSessions:"
	keyAPIKeyPrefix   = "apiKey:"
	keyFlagPrefix     = "flag:"
)

// Providers whose keys a tenant may store under settings/api-keys.
const (
	ProviderOpenAI  = "openai"
	ProviderYouTube = "youtube"
)

// Ledger caps
const (
	MaxRecentResults = 10
	MaxChatSessions  = 20
)

func AnalysisSessionsKey(userID string) string { return keyAnalysisPrefix + userID }
func APIKeyKey(provider string) string         { return keyAPIKeyPrefix + provider }
func FlagKey(name string) string               { return keyFlagPrefix + name }
