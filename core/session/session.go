// Package session turns a verified auth.Identity into a signed bearer token and back.
// The token is the sole source of truth for a session: there is no server-side session table.
package session

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/ibdp/core"
	"github.com/trezcool/ibdp/core/auth"
	"github.com/trezcool/ibdp/core/user"
)

// ErrUnauthenticated is returned for absent, malformed, expired or forged tokens alike.
var ErrUnauthenticated = errors.New("unauthenticated")

var signingMethod = jwt.SigningMethodHS256

// Claims represents the authorization claims transmitted via a JWT.
// At most one profile is set, and only the one matching Role.
type Claims struct {
	jwt.StandardClaims
	Email              string                   `json:"email,omitempty"`
	Name               string                   `json:"name,omitempty"`
	Role               user.Role                `json:"role"`
	StudentProfile     *user.StudentProfile     `json:"studentProfile,omitempty"`
	TeacherProfile     *user.TeacherProfile     `json:"teacherProfile,omitempty"`
	CoordinatorProfile *user.CoordinatorProfile `json:"coordinatorProfile,omitempty"`
}

// Valid checks the standard time claims, the role and the role/profile pairing.
func (c *Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if c.ExpiresAt == 0 {
		return errors.New("missing expiry")
	}
	if c.Subject == "" {
		return errors.New("missing subject")
	}
	if !c.Role.Valid() {
		return errors.Errorf("invalid role %q", c.Role)
	}
	if !user.ProfileMatches(c.Role, c.profile()) || c.profileCount() > 1 {
		return errors.New("profile does not match role")
	}
	return nil
}

func (c *Claims) profileCount() int {
	var n int
	if c.StudentProfile != nil {
		n++
	}
	if c.TeacherProfile != nil {
		n++
	}
	if c.CoordinatorProfile != nil {
		n++
	}
	return n
}

func (c *Claims) profile() user.Profile {
	switch {
	case c.StudentProfile != nil:
		return *c.StudentProfile
	case c.TeacherProfile != nil:
		return *c.TeacherProfile
	case c.CoordinatorProfile != nil:
		return *c.CoordinatorProfile
	}
	return nil
}

// Identity reconstructs the identity the claims were issued for.
func (c *Claims) Identity() auth.Identity {
	return auth.Identity{
		ID:          c.Subject,
		Email:       c.Email,
		DisplayName: c.Name,
		Role:        c.Role,
		Profile:     c.profile(),
	}
}

// Keys hold the signing configuration shared by the Issuer and the Reader.
type Keys struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// KeysFromConfig reads the signing configuration from conf.
func KeysFromConfig(conf *core.Config) Keys {
	return Keys{
		Secret: []byte(conf.SecretKey),
		Issuer: conf.AppName,
		TTL:    conf.Server.JWTExpirationDelta,
	}
}

func (k Keys) check() error {
	return vala.BeginValidation().Validate(
		vala.StringNotEmpty(string(k.Secret), "secret"),
		vala.StringNotEmpty(k.Issuer, "issuer"),
	).Check()
}

type Issuer struct {
	keys Keys
	now  func() time.Time
}

func NewIssuer(keys Keys) (*Issuer, error) {
	if err := keys.check(); err != nil {
		return nil, err
	}
	if keys.TTL <= 0 {
		return nil, errors.New("session TTL must be positive")
	}
	return &Issuer{keys: keys, now: time.Now}, nil
}

// NewClaims builds the claim set of id, expiring after ttl.
func NewClaims(id auth.Identity, issuer string, now time.Time, ttl time.Duration) *Claims {
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    issuer,
			Subject:   id.ID,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: id.Email,
		Name:  id.DisplayName,
		Role:  id.Role,
	}
	if p, ok := id.StudentProfile(); ok {
		claims.StudentProfile = &p
	}
	if p, ok := id.TeacherProfile(); ok {
		claims.TeacherProfile = &p
	}
	if p, ok := id.CoordinatorProfile(); ok {
		claims.CoordinatorProfile = &p
	}
	return claims
}

// Issue mints a signed token for id. The claims are fixed until the token expires.
func (iss *Issuer) Issue(id auth.Identity) (string, *Claims, error) {
	if id.IsZero() || !user.ProfileMatches(id.Role, id.Profile) {
		return "", nil, errors.New("cannot issue a session for an inconsistent identity")
	}
	claims := NewClaims(id, iss.keys.Issuer, iss.now(), iss.keys.TTL)
	ss, err := jwt.NewWithClaims(signingMethod, claims).SignedString(iss.keys.Secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "signing token")
	}
	return ss, claims, nil
}

type Reader struct {
	keys Keys
}

func NewReader(keys Keys) (*Reader, error) {
	if err := keys.check(); err != nil {
		return nil, err
	}
	return &Reader{keys: keys}, nil
}

// Read decodes token into the claims it was issued with.
func (r *Reader) Read(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.keys.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthenticated
	}
	if !claims.VerifyIssuer(r.keys.Issuer, true) {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// ReadIdentity decodes token into the identity it was issued for.
func (r *Reader) ReadIdentity(token string) (auth.Identity, error) {
	claims, err := r.Read(token)
	if err != nil {
		return auth.Identity{}, err
	}
	return claims.Identity(), nil
}
