package gateway

import "time"

// User is a server-owned identity. IDs are server-assigned and immutable.
type User struct {
	ID              string `json:"id"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Phone           string `json:"phone"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// DisplayName returns the user's name, falling back to the phone number.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Phone
	}
}

// Contact links the owner to another user, optionally under an alias.
// Uniqueness of (userId, contactId) is assumed server-side, not enforced here.
type Contact struct {
	ID      string `json:"id"`
	OwnerID string `json:"userId"`
	UserID  string `json:"contactId"`
	Alias   string `json:"alias,omitempty"`
}

// Conversation is a 1:1 conversation. Participants are fetched fresh on
// every poll and never mutated client-side.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []User    `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Peer returns the participant whose id differs from userID.
func (c Conversation) Peer(userID string) (User, bool) {
	for _, p := range c.Participants {
		if p.ID != userID {
			return p, true
		}
	}
	return User{}, false
}

// Message is a single text message within a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AuthResponse is the payload returned by register and login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

// Credentials is the payload for login.
type Credentials struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// ProfileUpdate carries the mutable profile fields.
type ProfileUpdate struct {
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}
