package models

import "strings"

// Category is the operational bucket an incident is filed under.
type Category string

const (
	CategoryMaintenance    Category = "Maintenance"
	CategoryCleaning       Category = "Cleaning"
	CategoryInternet       Category = "Internet"
	CategoryAdministration Category = "Administration"
	CategoryEmergency      Category = "Emergency"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryMaintenance,
	CategoryCleaning,
	CategoryInternet,
	CategoryAdministration,
	CategoryEmergency,
}

// classifierCategories maps the tokens used in the classification prompt
// (the model answers in Spanish) to the stored constants.
var classifierCategories = map[string]Category{
	"mantenimiento":  CategoryMaintenance,
	"limpieza":       CategoryCleaning,
	"internet":       CategoryInternet,
	"administración": CategoryAdministration,
	"administracion": CategoryAdministration,
	"emergencia":     CategoryEmergency,
}

// ParseCategory accepts either the stored English name or the Spanish token
// produced by the classifier.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if strings.ToLower(string(c)) == key {
			return c, true
		}
	}
	c, ok := classifierCategories[key]
	return c, ok
}

// Sentiment is the tone detected in the tenant's message.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentAngry    Sentiment = "Angry"
)

var classifierSentiments = map[string]Sentiment{
	"positive": SentimentPositive,
	"positivo": SentimentPositive,
	"neutral":  SentimentNeutral,
	"neutro":   SentimentNeutral,
	"angry":    SentimentAngry,
	"enfadado": SentimentAngry,
}

// ParseSentiment accepts the English or Spanish spelling.
func ParseSentiment(s string) (Sentiment, bool) {
	v, ok := classifierSentiments[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// Status is the triage state of an incident. Staff may move an incident
// between any two statuses.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusCanceled   Status = "canceled"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusCanceled}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusCanceled:
		return true
	}
	return false
}
