package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"santapot/internal/model"
	"santapot/internal/service"
)

// account resolves the caller's account, writing the error response when
// the caller has not signed up.
func (s *Server) account(c *gin.Context) (*model.UserAccount, bool) {
	user, err := s.svc.Accounts.GetByExternalID(c.Request.Context(), identityFrom(c).ExternalID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return user, true
}

type signupRequest struct {
	Username     string `json:"username"`
	ReferralCode string `json:"referral_code"`
}

type signupResponse struct {
	User         *model.UserAccount `json:"user"`
	Created      bool               `json:"created"`
	ReferralLink string             `json:"referral_link"`
}

func (s *Server) handleSignup(c *gin.Context) {
	var req signupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	id := identityFrom(c)
	username := req.Username
	if username == "" {
		username = id.Username
	}
	user, created, err := s.svc.Accounts.Register(c.Request.Context(), service.RegisterInput{
		ExternalID:   id.ExternalID,
		Email:        id.Email,
		Username:     username,
		ReferralCode: req.ReferralCode,
	})
	if user == nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, signupResponse{
		User:         user,
		Created:      created,
		ReferralLink: s.svc.Accounts.ReferralLink(user.ReferralCode),
	})
}

func (s *Server) handleMe(c *gin.Context) {
	user, ok := s.account(c)
	if !ok {
		return
	}
	d, err := s.svc.Stats.Dashboard(c.Request.Context(), user.UUID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type updateMeRequest struct {
	Username string `json:"username" binding:"required"`
}

func (s *Server) handleUpdateMe(c *gin.Context) {
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, ok := s.account(c)
	if !ok {
		return
	}
	if err := s.svc.Accounts.UpdateUsername(c.Request.Context(), user.UUID, req.Username); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleEligibility(c *gin.Context) {
	user, ok := s.account(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.svc.Eligibility.Evaluate(user))
}

type dailyLoginResponse struct {
	Recorded bool               `json:"recorded"`
	User     *model.UserAccount `json:"user"`
}

func (s *Server) handleDailyLogin(c *gin.Context) {
	user, ok := s.account(c)
	if !ok {
		return
	}
	updated, recorded, err := s.svc.Accrual.DailyLogin(c.Request.Context(), user.UUID)
	if updated == nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dailyLoginResponse{Recorded: recorded, User: updated})
}

type shareRequest struct {
	Platform string `json:"platform" binding:"required"`
}

func (s *Server) handleShare(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, ok := s.account(c)
	if !ok {
		return
	}
	updated, err := s.svc.Accrual.SocialShare(c.Request.Context(), user.UUID, req.Platform)
	if updated == nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleReferrals(c *gin.Context) {
	user, ok := s.account(c)
	if !ok {
		return
	}
	refs, err := s.svc.Accounts.Referrals(c.Request.Context(), user.UUID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"referrals": refs})
}

// handleReferralClick credits the link owner and redirects to the landing page.
func (s *Server) handleReferralClick(c *gin.Context) {
	code := c.Param("code")
	ip := c.ClientIP()
	updated, err := s.svc.Accounts.ClickReferral(c.Request.Context(), code, &ip)
	if updated == nil {
		writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, s.publicURL+"/?ref="+service.NormalizeReferralCode(code))
}
