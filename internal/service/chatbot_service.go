package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

const chatMessageMaxLen = 2000

// Reply sources.
const (
	ChatSourceAssistant = "assistant"
	ChatSourceRules     = "rules"
)

// Assistant answers free-form questions, typically backed by a hosted model.
type Assistant interface {
	Answer(ctx context.Context, systemPrompt, question string) (string, error)
}

// ChatReply is the answer to one help question.
type ChatReply struct {
	Response string
	Source   string
}

// ChatbotService answers help-desk questions about the complaint system. It
// uses the Assistant when one is configured and built-in replies otherwise.
type ChatbotService struct {
	assistant  Assistant
	categories repository.CategoryRepository
	logger     *zap.Logger
}

// ChatbotDependencies bundles collaborators. Assistant and CategoryRepo are optional.
type ChatbotDependencies struct {
	Assistant    Assistant
	CategoryRepo repository.CategoryRepository
	Logger       *zap.Logger
}

// NewChatbotService constructs the service.
func NewChatbotService(deps ChatbotDependencies) *ChatbotService {
	s := &ChatbotService{
		assistant:  deps.Assistant,
		categories: deps.CategoryRepo,
		logger:     deps.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

var (
	greetingPattern   = regexp.MustCompile(`^(hi|hello|hey|greetings)\b`)
	submitPattern     = regexp.MustCompile(`how.*(submit|create|file|make|open).*(complaint|ticket|issue)`)
	statusPattern     = regexp.MustCompile(`how.*(check|see|view|track).*(status|progress)`)
	categoriesPattern = regexp.MustCompile(`what.*(categories|types)|categor(y|ies)`)
)

// Reply answers message.
func (s *ChatbotService) Reply(ctx context.Context, message string) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewFieldError("message", "Message is required")
	}
	if utf8.RuneCountInString(message) > chatMessageMaxLen {
		return nil, apperrors.NewFieldError("message", fmt.Sprintf("message must be at most %d characters", chatMessageMaxLen))
	}

	if s.assistant != nil {
		answer, err := s.assistant.Answer(ctx, s.systemPrompt(ctx), message)
		if err == nil && strings.TrimSpace(answer) != "" {
			return &ChatReply{Response: answer, Source: ChatSourceAssistant}, nil
		}
		s.logger.Warn("assistant unavailable, using built-in reply", zap.Error(err))
	}
	return &ChatReply{Response: s.ruleReply(ctx, message), Source: ChatSourceRules}, nil
}

func (s *ChatbotService) ruleReply(ctx context.Context, message string) string {
	lower := strings.ToLower(message)
	switch {
	case greetingPattern.MatchString(lower):
		return "Hello! I'm the complaint desk assistant. I can help you with:\n\n" +
			"• Submitting complaints\n• Checking ticket status\n• Understanding categories\n• System features\n\n" +
			"What would you like to know?"
	case submitPattern.MatchString(lower):
		return "To submit a complaint:\n\n" +
			"1. Open \"Create Ticket\"\n" +
			"2. Enter a title and a description of at least 10 characters\n" +
			"3. Pick the category that fits best\n" +
			"4. Choose a priority (LOW, MEDIUM or HIGH)\n" +
			"5. Add the location if it helps\n" +
			"6. Submit\n\n" +
			"You will receive a ticket ID you can quote in follow-ups."
	case statusPattern.MatchString(lower):
		return "To check a complaint:\n\n" +
			"1. Go to \"My Tickets\"\n" +
			"2. Open the ticket for remarks and history\n\n" +
			"Status meanings:\n" +
			"• OPEN: submitted, waiting for staff\n" +
			"• IN_PROGRESS: being worked on\n" +
			"• RESOLVED: completed\n\n" +
			"You also get a notification whenever the status changes."
	case categoriesPattern.MatchString(lower):
		return "Available categories:\n\n" + s.categoryLines(ctx) + "\n\nChoose the closest match for your complaint."
	default:
		return "I can help you with:\n\n" +
			"• Submitting complaints\n• Checking status\n• Understanding categories\n• System features\n\n" +
			"Could you rephrase your question?"
	}
}

type chatCategory struct{ name, description string }

var defaultChatCategories = []chatCategory{
	{"Dormitory", "Room and residence issues"},
	{"Laboratory", "Lab equipment"},
	{"Internet", "Network and Wi-Fi problems"},
	{"Classroom", "Facility problems"},
	{"Library", "Library services"},
}

// categoryLines lists the stored categories, or the defaults when none can be read.
func (s *ChatbotService) categoryLines(ctx context.Context) string {
	categories := defaultChatCategories
	if s.categories != nil {
		stored, err := s.categories.List(ctx)
		if err != nil {
			s.logger.Debug("category lookup for chatbot failed", zap.Error(err))
		} else if len(stored) > 0 {
			categories = make([]chatCategory, 0, len(stored))
			for _, c := range stored {
				entry := chatCategory{name: c.Name}
				if c.Description != nil {
					entry.description = *c.Description
				}
				categories = append(categories, entry)
			}
		}
	}
	lines := make([]string, 0, len(categories))
	for _, c := range categories {
		line := "• " + c.name
		if c.description != "" {
			line += " - " + c.description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (s *ChatbotService) systemPrompt(ctx context.Context) string {
	return "You are the help assistant of a university complaint management system.\n" +
		"Students submit complaints, staff work on the tickets assigned to them, administrators manage everything.\n" +
		"Ticket statuses: OPEN, IN_PROGRESS, RESOLVED. Priorities: LOW, MEDIUM, HIGH.\n" +
		"Features: ticket creation, status tracking, attachments, remarks, notifications.\n" +
		"Categories:\n" + s.categoryLines(ctx) + "\n" +
		"Answer briefly, use bullet points for lists, and steer unrelated questions back to the complaint system."
}
