package controllers

import (
	"net/http"

	"Gin_postgres_redis_campus_rent/app"
	"Gin_postgres_redis_campus_rent/services"

	"github.com/gin-gonic/gin"
)

func (s *Srv) Register(c *gin.Context) {
	var in services.RegisterInput
	if !bindJSON(c, &in) {
		return
	}
	u, err := s.Users.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusCreated, "User registered successfully", u)
}

func (s *Srv) RegisterTeacher(c *gin.Context) {
	var in services.RegisterInput
	if !bindJSON(c, &in) {
		return
	}
	u, err := s.Users.RegisterTeacher(c.Request.Context(), actor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusCreated, "Teacher registered successfully", u)
}

func (s *Srv) RegisterAdmin(c *gin.Context) {
	var in services.RegisterInput
	if !bindJSON(c, &in) {
		return
	}
	u, err := s.Users.RegisterAdmin(c.Request.Context(), actor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusCreated, "Admin registered successfully", u)
}

func (s *Srv) Login(c *gin.Context) {
	var in services.LoginInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := s.Users.Login(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Login successful", res)
}

func (s *Srv) Logout(c *gin.Context) {
	if err := s.Users.Logout(c.Request.Context(), c.GetString(app.CtxToken)); err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Logged out", nil)
}

func (s *Srv) Me(c *gin.Context) {
	u, err := s.Users.Get(c.Request.Context(), c.GetString(app.CtxUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "User retrieved successfully", u)
}

func (s *Srv) GetUser(c *gin.Context) {
	u, err := s.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "User retrieved successfully", u)
}

// ListUsers ?q=&page=&size=
func (s *Srv) ListUsers(c *gin.Context) {
	res, err := s.Users.List(c.Request.Context(), actor(c), c.Query("q"), queryInt(c, "page", 1), queryInt(c, "size", 20))
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Users retrieved successfully", res)
}

func (s *Srv) ListAllUsers(c *gin.Context) {
	res, err := s.Users.ListAll(c.Request.Context(), actor(c), c.Query("q"), queryInt(c, "page", 1), queryInt(c, "size", 20))
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Users retrieved successfully", res)
}

func (s *Srv) UpdateUser(c *gin.Context) {
	var in services.UpdateUserInput
	if !bindJSON(c, &in) {
		return
	}
	u, err := s.Users.Update(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "User updated successfully", u)
}

func (s *Srv) DeleteUser(c *gin.Context) {
	u, err := s.Users.Delete(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "User deleted successfully", u)
}

func (s *Srv) ChangePassword(c *gin.Context) {
	var in services.ChangePasswordInput
	if !bindJSON(c, &in) {
		return
	}
	if err := s.Users.ChangePassword(c.Request.Context(), actor(c), in); err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Password changed successfully", nil)
}

func (s *Srv) ForgotPassword(c *gin.Context) {
	var in struct {
		Email string `json:"email"`
	}
	if !bindJSON(c, &in) {
		return
	}
	if err := s.Users.ForgotPassword(c.Request.Context(), in.Email); err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "If the email is registered, a reset link has been sent", nil)
}

func (s *Srv) ResetPassword(c *gin.Context) {
	var in services.ResetPasswordInput
	if !bindJSON(c, &in) {
		return
	}
	if err := s.Users.ResetPassword(c.Request.Context(), in); err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Password has been reset", nil)
}
