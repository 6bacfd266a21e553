package models

import (
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/golang-jwt/jwt/v5"
	pkgerrors "github.com/pkg/errors"

	"access-portal/pkg/token"
)

// Kind is the closed set of failure classes the error classifier understands.
type Kind int

const (
	KindGeneric Kind = iota
	KindUnauthorized
	KindSessionNotFound
	KindAppNotEnabled
	KindInsufficientPermissions
	KindMissingHeader
	KindInvalidToken
	KindTokenExpired
	KindUnsupportedMethod
	KindCommunicationsLinkFailure
)

var kindNames = map[Kind]string{
	KindGeneric:                   "generic",
	KindUnauthorized:              "unauthorized",
	KindSessionNotFound:           "session_not_found",
	KindAppNotEnabled:             "app_not_enabled",
	KindInsufficientPermissions:   "insufficient_permissions",
	KindMissingHeader:             "missing_header",
	KindInvalidToken:              "invalid_token",
	KindTokenExpired:              "token_expired",
	KindUnsupportedMethod:         "unsupported_method",
	KindCommunicationsLinkFailure: "communications_link_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a failure tagged with its Kind. Err carries the cause together with the stack
// captured where the error was raised.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err == nil || e.Err.Error() == e.Message {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Format prints the stack of the underlying cause for %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s [%s]", e.Message, e.Kind)
			if e.Err != nil {
				fmt.Fprintf(s, "\n%+v", e.Err)
			}
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// NewError creates an error of the given kind and records the caller's stack.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: pkgerrors.New(message)}
}

// WrapError tags cause with kind, adding a stack if the cause has none.
func WrapError(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return NewError(kind, message)
	}
	return &Error{Kind: kind, Message: message, Err: pkgerrors.WithStack(cause)}
}

func Unauthorized(message string) *Error {
	return NewError(KindUnauthorized, message)
}

func SessionNotFound() *Error {
	return NewError(KindSessionNotFound, "session not found")
}

func AppNotEnabled(app string) *Error {
	return NewError(KindAppNotEnabled, fmt.Sprintf("app %q is not enabled", app))
}

func InsufficientPermissions(capability string) *Error {
	return NewError(KindInsufficientPermissions, fmt.Sprintf("missing capability %q", capability))
}

func MissingHeader(header string) *Error {
	return NewError(KindMissingHeader, fmt.Sprintf("missing %s header", header))
}

func InvalidToken(cause error) *Error {
	return WrapError(KindInvalidToken, "invalid token", cause)
}

// UnsupportedMethod carries the rejected HTTP method.
func UnsupportedMethod(method string) *Error {
	return NewError(KindUnsupportedMethod, "Unsupported method: "+method)
}

// malformedTokenErrors are the token library failures treated as an invalid token.
// jwt.ErrTokenInvalidClaims is left out on purpose: the library joins it with
// jwt.ErrTokenExpired for expired tokens.
var malformedTokenErrors = []error{
	token.ErrInvalidToken,
	jwt.ErrTokenMalformed,
	jwt.ErrTokenUnverifiable,
	jwt.ErrTokenSignatureInvalid,
	jwt.ErrTokenRequiredClaimMissing,
	jwt.ErrTokenInvalidAudience,
	jwt.ErrTokenInvalidIssuer,
	jwt.ErrTokenInvalidSubject,
	jwt.ErrTokenUsedBeforeIssued,
	jwt.ErrTokenNotValidYet,
	jwt.ErrTokenInvalidId,
}

var linkFailurePattern = regexp.MustCompile(`(?i)communications\s+link\s+failure`)

// classificationOrder ranks kinds the way the classifier table lists them. When an
// error carries several kinds, the one listed first wins.
var classificationOrder = []Kind{
	KindUnauthorized,
	KindSessionNotFound,
	KindAppNotEnabled,
	KindInsufficientPermissions,
	KindMissingHeader,
	KindInvalidToken,
	KindTokenExpired,
	KindUnsupportedMethod,
	KindCommunicationsLinkFailure,
}

// KindOf resolves the discriminant of err. Every tagged *Error along the chain counts,
// including errors.Join branches, as do untagged token library errors and database link
// failures recognised by identity and by stack text. The highest ranked kind wins.
func KindOf(err error) Kind {
	if err == nil {
		return KindGeneric
	}

	found := make(map[Kind]bool)
	walkChain(err, func(e error) {
		if tagged, ok := e.(*Error); ok && tagged.Kind != KindGeneric {
			found[tagged.Kind] = true
		}
	})

	for _, target := range malformedTokenErrors {
		if errors.Is(err, target) {
			found[KindInvalidToken] = true
			break
		}
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		found[KindTokenExpired] = true
	}
	if linkFailurePattern.MatchString(StackText(err)) {
		found[KindCommunicationsLinkFailure] = true
	}

	for _, kind := range classificationOrder {
		if found[kind] {
			return kind
		}
	}
	return KindGeneric
}

// walkChain calls visit for err and every error it wraps, depth first.
func walkChain(err error, visit func(error)) {
	if err == nil {
		return
	}
	visit(err)

	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			walkChain(inner, visit)
		}
	case interface{ Unwrap() error }:
		walkChain(u.Unwrap(), visit)
	}
}

// StackText renders err with every stack frame recorded along its chain.
func StackText(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err)
}
