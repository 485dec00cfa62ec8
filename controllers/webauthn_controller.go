// controllers/webauthn_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"Gin_postgres_redis_campus_rent/app"
	"Gin_postgres_redis_campus_rent/models"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// WebAuthn: DB user -> waUser
type waUser struct {
	user  models.User
	creds []webauthn.Credential
}

func (u *waUser) WebAuthnID() []byte                         { id, _ := uuid.Parse(u.user.ID); return id[:] }
func (u *waUser) WebAuthnName() string                       { return u.user.Email }
func (u *waUser) WebAuthnDisplayName() string                { return u.user.Username }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toWaCred(c models.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func (s *Srv) waUserFor(ctx context.Context, u *models.User) (*waUser, error) {
	cs, err := s.Repo.LoadUserCredentials(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &waUser{user: *u, creds: lo.Map(cs, func(c models.Credential, _ int) webauthn.Credential { return toWaCred(c) })}, nil
}

func (s *Srv) loadWAUserByID(ctx context.Context, id string) (*waUser, error) {
	u, err := s.Repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.waUserFor(ctx, u)
}

// 用户名 / 邮箱 / nip 均可
func (s *Srv) loadWAUserByIdentifier(ctx context.Context, ident string) (*waUser, error) {
	u, err := s.Repo.FindUserForLogin(ctx, ident)
	if err != nil {
		return nil, err
	}
	return s.waUserFor(ctx, u)
}

func registrationOpts() []webauthn.RegistrationOption {
	return []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationRequired,
		}),
	}
}

// ===== 添加 Passkey（已登录） =====

func (s *Srv) BeginAddCredential(c *gin.Context) {
	uid := c.GetString(app.CtxUserID)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	wUser, err := s.loadWAUserByID(ctx, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	// 已有凭据不再重复注册
	excl := webauthn.WithExclusions(lo.Map(wUser.creds, func(wc webauthn.Credential, _ int) protocol.CredentialDescriptor {
		return wc.Descriptor()
	}))
	opts, sd, err := s.WA.BeginRegistration(wUser, append(registrationOpts(), excl)...)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.Ceremonies.SaveReg(ctx, uid, sd); err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Passkey registration started", app.H{"opts": opts})
}

func (s *Srv) FinishAddCredential(c *gin.Context) {
	uid := c.GetString(app.CtxUserID)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	wUser, err := s.loadWAUserByID(ctx, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	sd, err := s.Ceremonies.LoadReg(ctx, uid)
	if err != nil {
		app.Fail(c, http.StatusBadRequest, "Registration session expired or invalid", nil)
		return
	}
	cred, err := s.WA.FinishRegistration(wUser, *sd, c.Request)
	if err != nil {
		app.Fail(c, http.StatusBadRequest, "Passkey registration failed", err.Error())
		return
	}

	if err := s.Repo.AddCredential(ctx, &models.Credential{
		UserID:          wUser.user.ID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		CloneWarning:    cred.Authenticator.CloneWarning,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}); err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusCreated, "Passkey registered", nil)
}

// ===== Passkey 登录 =====

type loginBeginReq struct {
	Username     string `json:"username"`
	Discoverable bool   `json:"discoverable"`
}

type loginBeginResp struct {
	Options   *protocol.CredentialAssertion `json:"options"`
	SessionID string                        `json:"sessionId"`
}

func (s *Srv) BeginPasskeyLogin(c *gin.Context) {
	var req loginBeginReq
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	var (
		opts *protocol.CredentialAssertion
		sd   *webauthn.SessionData
		err  error
	)
	if req.Discoverable || req.Username == "" {
		opts, sd, err = s.WA.BeginDiscoverableLogin(webauthn.WithUserVerification(protocol.VerificationRequired))
	} else {
		wUser, lerr := s.loadWAUserByIdentifier(ctx, req.Username)
		if lerr != nil || len(wUser.creds) == 0 {
			app.Fail(c, http.StatusUnauthorized, "wrong credentials", nil)
			return
		}
		opts, sd, err = s.WA.BeginLogin(wUser, webauthn.WithUserVerification(protocol.VerificationRequired))
	}
	if err != nil {
		respondError(c, err)
		return
	}

	sid := uuid.NewString()
	if err := s.Ceremonies.SaveAuth(ctx, sid, sd); err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Passkey login started", loginBeginResp{Options: opts, SessionID: sid})
}

// FinishPasskeyLogin ?sessionId=...[&username=...]，成功后签发与密码登录相同的令牌
func (s *Srv) FinishPasskeyLogin(c *gin.Context) {
	sid := c.Query("sessionId")
	if sid == "" {
		app.Fail(c, http.StatusBadRequest, "Bad Request", app.H{"sessionId": "required"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	sd, err := s.Ceremonies.LoadAuth(ctx, sid)
	if err != nil {
		app.Fail(c, http.StatusBadRequest, "Login session expired or invalid", nil)
		return
	}

	var (
		wUser *waUser
		cred  *webauthn.Credential
	)
	if username := c.Query("username"); username != "" {
		wUser, err = s.loadWAUserByIdentifier(ctx, username)
		if err != nil {
			app.Fail(c, http.StatusUnauthorized, "wrong credentials", nil)
			return
		}
		cred, err = s.WA.FinishLogin(wUser, *sd, c.Request)
	} else {
		handler := func(rawID, _ []byte) (webauthn.User, error) {
			u, _, err := s.Repo.FindUserByCredentialID(ctx, rawID)
			if err != nil {
				return nil, protocol.ErrBadRequest.WithDetails("credential not found")
			}
			return s.waUserFor(ctx, u)
		}
		var user webauthn.User
		user, cred, err = s.WA.FinishPasskeyLogin(handler, *sd, c.Request)
		if err == nil {
			wUser = user.(*waUser)
		}
	}
	if err != nil {
		app.Fail(c, http.StatusUnauthorized, "wrong credentials", nil)
		return
	}
	_ = s.Repo.UpdateCredentialCounter(ctx, cred.ID, cred.Authenticator.SignCount, cred.Authenticator.CloneWarning)

	res, err := s.Users.IssueSession(ctx, &wUser.user)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Login successful", res)
}
