package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleListOffers(c *gin.Context) {
	offers, err := s.svc.Offers.List(c.Request.Context(), "")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

func (s *Server) handleMyOffers(c *gin.Context) {
	user, ok := s.account(c)
	if !ok {
		return
	}
	offers, err := s.svc.Offers.List(c.Request.Context(), user.UUID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

func (s *Server) handleOfferClick(c *gin.Context) {
	user, ok := s.account(c)
	if !ok {
		return
	}
	offer, updated, err := s.svc.Offers.Click(c.Request.Context(), user.UUID, c.Param("id"))
	if updated == nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offer": offer, "link": offer.Link})
}

func (s *Server) handleOfferComplete(c *gin.Context) {
	user, ok := s.account(c)
	if !ok {
		return
	}
	updated, err := s.svc.Offers.Complete(c.Request.Context(), user.UUID, c.Param("id"))
	if updated == nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
