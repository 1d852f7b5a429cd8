// Package domain contains core domain types for the admin console.
package domain

// FragmentTypeText is the only fragment type the console itself produces.
const FragmentTypeText = "text"

// DefaultUserID is the identity used when an open chat request names no user.
const DefaultUserID = "admin_web_interface"

// Fragment is one renderable unit of a chat response.
type Fragment struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// TextFragments wraps a message into the single-fragment list returned on failure paths.
func TextFragments(content string) []Fragment {
	return []Fragment{{Type: FragmentTypeText, Content: content}}
}

// ChatRequest is the payload forwarded to the bot core.
// Query is a pointer so an absent message is sent as JSON null.
type ChatRequest struct {
	Query    *string           `json:"query"`
	UserID   string            `json:"user_id"`
	Settings map[string]string `json:"settings"`
}
