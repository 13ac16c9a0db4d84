// Package domain holds the account model. Matchmaking trusts ticket-supplied
// identity and only touches this package through the repository boundary.
package domain

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nbutton23/zxcvbn-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordStrengthScore = 3

	usernamePattern   = `^[a-zA-Z0-9_]+$` // Alphanumeric with underscores
	minUsernameLength = 3
	maxUsernameLength = 20

	connectCodeSeparator = "#"
	connectCodeMaxLength = 8
)

var (
	usernameRegex = regexp.MustCompile(usernamePattern)

	// Punctuation selectable on the in-game name entry screen.
	nameEntryPunctuation = "+-=!?@%&#$. ｡､"
	// Displayable in-game but not selectable on the name entry screen.
	otherDisplayablePunctuation = "/"
)

var (
	ErrUsernameTooShort      = errors.New("username too short")
	ErrUsernameTooLong       = errors.New("username too long")
	ErrUsernameInvalid       = errors.New("invalid username format")
	ErrPasswordTooWeak       = errors.New("password too weak")
	ErrDisplayNameEmpty      = errors.New("display name is empty")
	ErrDisplayNameInvalid    = errors.New("display name contains characters not displayable in game")
	ErrConnectCodeInvalid    = errors.New("invalid connect code")
	ErrConnectCodeTaken      = errors.New("connect code is already in use")
	ErrUsernameTaken         = errors.New("username is already in use")
	ErrUserNotFound          = errors.New("user not found")
	ErrCredentialsInvalid    = errors.New("invalid username or password")
	ErrNoCredentialsOnRecord = errors.New("user has no login credentials")
)

// User is a registered player. Username and PasswordHash are empty for
// accounts created through the public user endpoint, which issues playable
// identities without site login credentials.
type User struct {
	ID            uuid.UUID `bson:"_id"`
	Username      string    `bson:"username,omitempty"`
	PasswordHash  string    `bson:"passwordHash,omitempty"`
	PlayKey       string    `bson:"playKey"`
	DisplayName   string    `bson:"displayName"`
	ConnectCode   string    `bson:"connectCode"`
	LatestVersion string    `bson:"latestVersion,omitempty"`
}

// UserConfig holds the parameters for creating a User. Username and
// PlainPassword may both be empty for credential-less accounts.
type UserConfig struct {
	Username      string
	PlainPassword string
	DisplayName   string
	ConnectCode   string
}

// NewUser validates the configuration and mints a new user with a fresh uid
// and play key.
func NewUser(cfg UserConfig) (*User, error) {
	if err := validateDisplayName(cfg.DisplayName); err != nil {
		return nil, err
	}
	if err := ValidateConnectCode(cfg.ConnectCode); err != nil {
		return nil, err
	}

	var passwordHash string
	if cfg.Username != "" || cfg.PlainPassword != "" {
		if err := validateUsername(cfg.Username); err != nil {
			return nil, err
		}
		if err := validatePassword(cfg.PlainPassword); err != nil {
			return nil, err
		}
		hash, err := hashPassword(cfg.PlainPassword)
		if err != nil {
			return nil, err
		}
		passwordHash = hash
	}

	return &User{
		ID:           uuid.New(),
		Username:     cfg.Username,
		PasswordHash: passwordHash,
		PlayKey:      primitive.NewObjectID().Hex(),
		DisplayName:  cfg.DisplayName,
		ConnectCode:  cfg.ConnectCode,
	}, nil
}

// VerifyPassword verifies if the given password matches the stored hash.
func (u *User) VerifyPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// IsValidConnectCode reports whether a code satisfies the in-game rules:
// a tag of uppercase letters, digits, or kana, then '#', then digits only,
// eight characters at most.
func IsValidConnectCode(code string) bool {
	return ValidateConnectCode(code) == nil
}

// ValidateConnectCode checks a connect code and returns ErrConnectCodeInvalid
// if any rule fails.
func ValidateConnectCode(code string) error {
	n := utf8.RuneCountInString(code)
	if n < 1 || n > connectCodeMaxLength {
		return ErrConnectCodeInvalid
	}

	tag, discriminant, found := strings.Cut(code, connectCodeSeparator)
	if !found || tag == "" || discriminant == "" {
		return ErrConnectCodeInvalid
	}
	for _, r := range tag {
		if !isSelectableInNameEntry(r) || isNameEntryPunctuation(r) {
			return ErrConnectCodeInvalid
		}
	}
	for _, r := range discriminant {
		if !unicode.IsDigit(r) {
			return ErrConnectCodeInvalid
		}
	}
	return nil
}

func validateUsername(username string) error {
	if len(username) < minUsernameLength {
		return ErrUsernameTooShort
	}
	if len(username) > maxUsernameLength {
		return ErrUsernameTooLong
	}
	if !usernameRegex.MatchString(username) {
		return ErrUsernameInvalid
	}
	return nil
}

// validatePassword checks the strength of the password.
func validatePassword(password string) error {
	result := zxcvbn.PasswordStrength(password, nil)
	if result.Score < minPasswordStrengthScore {
		return ErrPasswordTooWeak
	}
	return nil
}

func validateDisplayName(name string) error {
	if name == "" {
		return ErrDisplayNameEmpty
	}
	if !isDisplayableInGame(name) {
		return ErrDisplayNameInvalid
	}
	return nil
}

// isSelectableInNameEntry matches the character set the in-game name entry
// screen offers: uppercase ASCII, digits, hiragana, katakana, and a small
// punctuation set.
func isSelectableInNameEntry(r rune) bool {
	return unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.IsDigit(r) ||
		(r >= 'A' && r <= 'Z') ||
		isNameEntryPunctuation(r)
}

func isNameEntryPunctuation(r rune) bool {
	return strings.ContainsRune(nameEntryPunctuation, r)
}

// hashPassword generates a bcrypt hash for the given password.
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

// isDisplayableInGame additionally admits lowercase ASCII names with a '/',
// which the game can render even though name entry cannot produce them.
func isDisplayableInGame(name string) bool {
	selectable := true
	displayable := true
	for _, r := range name {
		if !isSelectableInNameEntry(r) {
			selectable = false
		}
		asciiAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !asciiAlnum && !isNameEntryPunctuation(r) && !strings.ContainsRune(otherDisplayablePunctuation, r) {
			displayable = false
		}
	}
	return selectable || displayable
}
