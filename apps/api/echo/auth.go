package echoapi

import (
	"sort"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/Shukurulla/dogerek-tutor/core"
	"github.com/Shukurulla/dogerek-tutor/core/tutor"
)

var (
	// appJWTConfig is the default JWT auth middleware config.
	appJWTConfig = middleware.JWTConfig{
		SigningKey:    []byte(core.Conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "tutorToken",
		Claims:        new(Claims),
	}
	contextTutorKey = "tutor"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsTutor      bool     `json:"is_tutor,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

func GetTutorClaims(tut tutor.Tutor, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   tut.ID,
			Audience:  "Dogerek",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     tut.Username,
		Email:        tut.Email,
		IsTutor:      tut.IsTutor(),
		IsAdmin:      tut.IsAdmin(),
		Roles:        tut.Roles,
	}
	return claims
}

func authenticate(uname, pwd string, svc tutor.ServiceInterface) (*Claims, error) {
	tut, err := svc.GetByUsernameOrEmail(uname)
	if err != nil {
		if errors.Cause(err) == tutor.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding tutor by username or email")
	}
	if err = tut.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !tut.IsActive {
		return nil, errAccountDeactivated
	}
	if err = svc.SetLastLogin(tut); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetTutorClaims(tut), nil
}

// GenerateToken generates a signed JWT token string representing the tutor Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextTutor(ctx echo.Context, svc tutor.ServiceInterface, clms ...Claims) (tutor.Tutor, error) {
	if tut, ok := ctx.Get(contextTutorKey).(tutor.Tutor); ok {
		return tut, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return tutor.Tutor{}, errors.Wrap(err, "getting context claims")
		}
	}

	tut, err := svc.GetByID(claims.Subject)
	if err != nil {
		return tutor.Tutor{}, errors.Wrap(err, "finding tutor by ID")
	}
	ctx.Set(contextTutorKey, tut)
	return tut, nil
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	if claims, err := getContextClaims(ctx); err == nil {
		sort.Strings(claims.Roles)
		for _, role := range roles {
			if i := sort.SearchStrings(claims.Roles, role); i < len(claims.Roles) {
				if match := claims.Roles[i]; role == match {
					return true
				}
			}
		}
	}
	return false
}

func refreshToken(ctx echo.Context, svc tutor.ServiceInterface) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	tut, err := getContextTutor(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context tutor")
	}

	// check if tutor is still active
	if !tut.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(core.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := GetTutorClaims(tut, claims.OrigIssuedAt)
	token, err := GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
