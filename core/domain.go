package core

import (
	"strings"
	"time"
)

const ConnectedLabel = "Connected"

type LinkState string

const (
	LinkStateUnlinked  LinkState = "unlinked"
	LinkStatePending   LinkState = "pending"
	LinkStateConnected LinkState = "connected"
)

// ConnectionRecord is the persisted link between a caller identity and a
// provider profile.
type ConnectionRecord struct {
	ID                 string
	Identity           string
	Email              string
	ProviderProfileKey string
	ProviderRef        string
	Connected          bool
	ConnectedAt        *time.Time
	ConnectionLabel    string
	LastCheckedAt      *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (r ConnectionRecord) HasProfileKey() bool {
	return strings.TrimSpace(r.ProviderProfileKey) != ""
}

func (r ConnectionRecord) State() LinkState {
	switch {
	case !r.HasProfileKey():
		return LinkStateUnlinked
	case r.Connected:
		return LinkStateConnected
	default:
		return LinkStatePending
	}
}

type SaveProfileKeyInput struct {
	Identity    string
	Email       string
	ProfileKey  string
	ProviderRef string
}

// MarkConnectedInput carries a positive detection. CheckedAt is set when the
// detection came from a provider account check and stamps last_checked_at.
type MarkConnectedInput struct {
	Identity    string
	ProfileKey  string
	ConnectedAt time.Time
	CheckedAt   time.Time
	Label       string
}

type ProviderProfile struct {
	ProfileKey string
	Reference  string
	Title      string
}

type CreateProfileRequest struct {
	Reference      string
	Title          string
	IdempotencyKey string
}

type FindProfileRequest struct {
	Reference string
}

type IssueSessionRequest struct {
	ProfileKey  string
	RedirectURL string
}

// SessionGrant carries either a ready link or the token and domain needed to
// build one.
type SessionGrant struct {
	URL       string
	Token     string
	Domain    string
	ExpiresAt *time.Time
}

type PublishPayload struct {
	ProfileKey   string
	Content      string
	Platforms    []string
	MediaURLs    []string
	ScheduleDate *time.Time
}

type PlatformPost struct {
	Platform string
	ID       string
	URL      string
	Status   string
}

type ProviderPublishResult struct {
	Status  string
	PostID  string
	Posts   []PlatformPost
	Errors  []string
	Details map[string]any
}

// PersistenceOutcome reports store writes that were attempted but are not
// fatal to the caller.
type PersistenceOutcome struct {
	Attempted bool
	Persisted bool
	Err       error
}

func (o PersistenceOutcome) Failed() bool {
	return o.Attempted && o.Err != nil
}

func persisted() PersistenceOutcome {
	return PersistenceOutcome{Attempted: true, Persisted: true}
}

func persistFailed(err error) PersistenceOutcome {
	return PersistenceOutcome{Attempted: true, Err: err}
}

type ResolveSource string

const (
	ResolveSourceStore   ResolveSource = "store"
	ResolveSourceRemote  ResolveSource = "remote"
	ResolveSourceCreated ResolveSource = "created"
)

type ResolveProfileRequest struct {
	Identity string
	Email    string
}

type ResolveProfileResult struct {
	Identity    string
	ProfileKey  string
	Source      ResolveSource
	Duplicate   bool
	DroppedKey  string
	Persistence PersistenceOutcome
}

type IssueLinkRequest struct {
	Identity   string
	ProfileKey string
}

type LinkSession struct {
	Identity    string
	ProfileKey  string
	URL         string
	Constructed bool
	ExpiresAt   *time.Time
}

type ConnectRequest struct {
	Identity string
	Email    string
}

type ConnectResult struct {
	Identity    string
	ProfileKey  string
	LinkURL     string
	Source      ResolveSource
	ExpiresAt   *time.Time
	Persistence PersistenceOutcome
}

type CallbackOutcome string

const (
	CallbackOutcomeConnected CallbackOutcome = "connected"
	CallbackOutcomePending   CallbackOutcome = "pending"
	CallbackOutcomeFailed    CallbackOutcome = "failed"
)

const (
	CallbackReasonNoIdentity          = "no-identity"
	CallbackReasonInvalidSignature    = "invalid-signature"
	CallbackReasonAuthorizationFailed = "authorization-failed"
	CallbackReasonPendingVerification = "pending-verification"
	CallbackReasonPersistenceFailed   = "persistence-failed"
)

type CallbackRequest struct {
	Identity  string
	Status    string
	Signature string
}

type CallbackResult struct {
	Identity    string
	Outcome     CallbackOutcome
	Reason      string
	RedirectURL string
	Persistence PersistenceOutcome
}

type CheckConnectionRequest struct {
	Identity   string
	ProfileKey string
}

type ConnectionStatus struct {
	Identity      string
	ProfileKey    string
	Connected     bool
	Accounts      []string
	ConnectedAt   *time.Time
	ProviderError error
	Persistence   PersistenceOutcome
}

type PublishRequest struct {
	Identity     string
	Content      string
	Platforms    []string
	MediaURLs    []string
	ScheduleDate *time.Time
}

type PublishResult struct {
	Identity  string
	PostID    string
	Status    string
	Platforms []string
	Posts     []PlatformPost
}

type ReconcileResult struct {
	Checked   int
	Connected int
	Failed    int
}
