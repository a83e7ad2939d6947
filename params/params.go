package params

import (
	"fmt"
	"time"
)

const (
	ServerBodyLimit    = 1048576
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
)

const (
	AuthorizationCodeTTL = 600 * time.Second
	AccessTokenTTL       = 3600 * time.Second
	CSRFTokenExpiration  = 1 * time.Hour
	OAuthStateTimeout    = 10 * time.Minute
	DefaultRPCTimeout    = 5 * time.Second
	MaxFetchBodySize     = 2 << 20
	TicketScope          = "read"
	ResourceAll          = "all"
	TokenTypeBearer      = "Bearer"
)

// Issued tokens are the primary key of a utf8mb4 column on MySQL, whose index
// tops out at 3072 bytes. The request caps keep a signed token below it.
const (
	MaxTokenLength    = 768
	MaxClientIDLength = 160
	MaxScopeLength    = 160
)

// ScopesSupported is advertised in the discovery document.
var ScopesSupported = []string{
	"profile", "email", "create", "draft", "update", "delete", "undelete",
	"media", "read", "follow", "mute", "block", "channels",
}

const (
	VersionMajor = 0
	VersionMinor = 3
	VersionPatch = 0
	VersionMeta  = "dev"
)

var Version = func() string {
	v := fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
	if VersionMeta != "" {
		v += "-" + VersionMeta
	}
	return v
}()

func VersionWithCommit(gitCommit, gitDate string) string {
	vsn := Version
	if len(gitCommit) >= 8 {
		vsn += "-" + gitCommit[:8]
	}
	if (VersionMeta != "stable") && (gitDate != "") {
		vsn += "-" + gitDate
	}
	return vsn
}
