package logentry

// Service tags the producing service and selects the entry variant.
type Service string

const (
	ServiceAuth           Service = "auth-service"
	ServiceChatBot        Service = "chat-bot"
	ServiceJournal        Service = "journal-service"
	ServiceAI             Service = "ai-service"
	ServicePayment        Service = "payment-service"
	ServiceNotification   Service = "notification-service"
	ServiceGamification   Service = "gamification-service"
	ServiceChat           Service = "chat-service"
	ServiceCommunity      Service = "community-service"
	ServiceTeletherapy    Service = "teletherapy-service"
	ServiceRecommendation Service = "recommendation-service"
	ServiceResource       Service = "resource-service"
	ServiceReporting      Service = "reporting-service"
	ServiceAnalytics      Service = "analytics-service"
	ServiceCompliance     Service = "compliance-service"
)

// LegacyChatBot is the storage tag older producers used for the chat-bot.
const LegacyChatBot Service = "lyfbot-service"

// Common carries the fields every variant shares.
type Common struct {
	Service         string         `json:"service" validate:"required"`
	Timestamp       string         `json:"timestamp,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	InteractionType string         `json:"interaction_type" validate:"required"`
	UserID          string         `json:"user_id,omitempty"`
	SessionID       string         `json:"session_id,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

func (c *Common) common() *Common { return c }

// Variant is implemented by every registered entry shape.
type Variant interface {
	common() *Common
}

type AuthEntry struct {
	Common
	Action        string `json:"action" validate:"required,oneof=login logout register password_reset mfa_setup mfa_verify"`
	Success       *bool  `json:"success" validate:"required"`
	FailureReason string `json:"failure_reason,omitempty"`
	IPAddress     string `json:"ip_address,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	Location      string `json:"location,omitempty"`
}

type ChatBotEntry struct {
	Common
	ConversationID string   `json:"conversation_id,omitempty"`
	Prompt         string   `json:"prompt" validate:"required"`
	Response       string   `json:"response" validate:"required"`
	Model          string   `json:"model" validate:"required"`
	TokensUsed     *int     `json:"tokens_used,omitempty" validate:"omitempty,gte=0"`
	ResponseTimeMS *float64 `json:"response_time_ms,omitempty" validate:"omitempty,gte=0"`
	CrisisDetected bool     `json:"crisis_detected,omitempty"`
	SentimentScore *float64 `json:"sentiment_score,omitempty" validate:"omitempty,gte=-1,lte=1"`
	ContextUsed    []string `json:"context_used,omitempty"`
}

type JournalAnalysis struct {
	Sentiment *float64 `json:"sentiment,omitempty"`
	Themes    []string `json:"themes,omitempty"`
	Insights  string   `json:"insights,omitempty"`
}

type JournalEntry struct {
	Common
	EntryID         string           `json:"entry_id" validate:"required"`
	EntryContent    string           `json:"entry_content" validate:"required"`
	MoodScore       *float64         `json:"mood_score,omitempty" validate:"omitempty,gte=1,lte=10"`
	Tags            []string         `json:"tags,omitempty"`
	AnalysisResults *JournalAnalysis `json:"analysis_results,omitempty"`
}

type AIEntry struct {
	Common
	Model          string   `json:"model" validate:"required"`
	Feature        string   `json:"feature,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
	Response       string   `json:"response,omitempty"`
	TokensUsed     *int     `json:"tokens_used,omitempty" validate:"omitempty,gte=0"`
	ResponseTimeMS *float64 `json:"response_time_ms,omitempty" validate:"omitempty,gte=0"`
}

type PaymentEntry struct {
	Common
	TransactionID  string   `json:"transaction_id" validate:"required"`
	Amount         *float64 `json:"amount" validate:"required"`
	Currency       string   `json:"currency" validate:"required"`
	PaymentMethod  string   `json:"payment_method" validate:"required"`
	Status         string   `json:"status" validate:"required,oneof=pending completed failed refunded"`
	SubscriptionID string   `json:"subscription_id,omitempty"`
}

type NotificationEntry struct {
	Common
	NotificationID string `json:"notification_id" validate:"required"`
	Type           string `json:"type" validate:"required,oneof=email push sms in_app"`
	Recipient      string `json:"recipient" validate:"required"`
	Content        string `json:"content" validate:"required"`
	Status         string `json:"status" validate:"required,oneof=sent delivered failed opened"`
}

type GamificationEntry struct {
	Common
	AchievementID string `json:"achievement_id,omitempty"`
	PointsEarned  *int   `json:"points_earned,omitempty"`
	StreakCount   *int   `json:"streak_count,omitempty" validate:"omitempty,gte=0"`
	BadgeEarned   string `json:"badge_earned,omitempty"`
	LevelUp       bool   `json:"level_up,omitempty"`
}

type ChatEntry struct {
	Common
	ChatID         string `json:"chat_id" validate:"required"`
	MessageID      string `json:"message_id" validate:"required"`
	MessageType    string `json:"message_type" validate:"required,oneof=text image file system"`
	MessageContent string `json:"message_content" validate:"required"`
	SenderID       string `json:"sender_id" validate:"required"`
	RecipientID    string `json:"recipient_id,omitempty"`
}

type CommunityEntry struct {
	Common
	ContentType      string `json:"content_type" validate:"required,oneof=post comment like share"`
	PostID           string `json:"post_id,omitempty"`
	Content          string `json:"content,omitempty"`
	ModerationStatus string `json:"moderation_status,omitempty"`
}

type TeletherapyEntry struct {
	Common
	// SessionID shadows the optional common field; therapy sessions must name one.
	SessionID       string `json:"session_id" validate:"required"`
	TherapistID     string `json:"therapist_id" validate:"required"`
	SessionType     string `json:"session_type" validate:"required,oneof=video audio chat"`
	SessionStatus   string `json:"session_status" validate:"required,oneof=scheduled in_progress completed cancelled"`
	DurationMinutes *int   `json:"duration_minutes,omitempty" validate:"omitempty,gte=0"`
	Notes           string `json:"notes,omitempty"`
}

type RecommendationEntry struct {
	Common
	RecommendationType string   `json:"recommendation_type" validate:"required,oneof=content therapist activity resource"`
	RecommendationID   string   `json:"recommendation_id" validate:"required"`
	UserFeedback       string   `json:"user_feedback,omitempty" validate:"omitempty,oneof=positive negative neutral"`
	Score              *float64 `json:"score,omitempty"`
}

type ResourceEntry struct {
	Common
	ResourceID      string `json:"resource_id" validate:"required"`
	ResourceType    string `json:"resource_type" validate:"required,oneof=article video audio exercise assessment"`
	Action          string `json:"action" validate:"required,oneof=view download complete bookmark"`
	DurationSeconds *int   `json:"duration_seconds,omitempty" validate:"omitempty,gte=0"`
}

type ReportingEntry struct {
	Common
	ReportType string         `json:"report_type" validate:"required,oneof=usage engagement clinical financial"`
	ReportID   string         `json:"report_id" validate:"required"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type AnalyticsEntry struct {
	Common
	EventName       string         `json:"event_name" validate:"required"`
	EventProperties map[string]any `json:"event_properties,omitempty"`
	DeviceType      string         `json:"device_type,omitempty" validate:"omitempty,oneof=mobile tablet desktop"`
}

type ComplianceEntry struct {
	Common
	AuditEvent string         `json:"audit_event" validate:"required"`
	Framework  string         `json:"framework,omitempty" validate:"omitempty,oneof=GDPR HIPAA PDPO"`
	Details    map[string]any `json:"details,omitempty"`
}

// registry is the closed set of accepted services. Adding a producer means
// adding one variant above and one line here.
var registry = map[Service]func() Variant{
	ServiceAuth:           func() Variant { return &AuthEntry{} },
	ServiceChatBot:        func() Variant { return &ChatBotEntry{} },
	ServiceJournal:        func() Variant { return &JournalEntry{} },
	ServiceAI:             func() Variant { return &AIEntry{} },
	ServicePayment:        func() Variant { return &PaymentEntry{} },
	ServiceNotification:   func() Variant { return &NotificationEntry{} },
	ServiceGamification:   func() Variant { return &GamificationEntry{} },
	ServiceChat:           func() Variant { return &ChatEntry{} },
	ServiceCommunity:      func() Variant { return &CommunityEntry{} },
	ServiceTeletherapy:    func() Variant { return &TeletherapyEntry{} },
	ServiceRecommendation: func() Variant { return &RecommendationEntry{} },
	ServiceResource:       func() Variant { return &ResourceEntry{} },
	ServiceReporting:      func() Variant { return &ReportingEntry{} },
	ServiceAnalytics:      func() Variant { return &AnalyticsEntry{} },
	ServiceCompliance:     func() Variant { return &ComplianceEntry{} },
}

// IsKnown reports whether s is a registered service tag.
func IsKnown(s Service) bool {
	_, ok := registry[s]
	return ok
}

// Canonical maps legacy tags onto their registered service.
func Canonical(s Service) Service {
	if s == LegacyChatBot {
		return ServiceChatBot
	}
	return s
}
