package service

import (
	"context"
	"errors"

	"santapot/internal/model"
	"santapot/internal/repository"
)

// OfferView is a catalog entry annotated for one account.
type OfferView struct {
	model.Offer
	Completed bool `json:"completed"`
}

// OfferService serves the offer catalog and completes offers once per account.
type OfferService struct {
	catalog []model.Offer
	byID    map[string]model.Offer
	events  EventStore
	accrual *AccrualService
}

// NewOfferService creates a new OfferService over a fixed catalog.
func NewOfferService(catalog []model.Offer, events EventStore, accrual *AccrualService) *OfferService {
	byID := make(map[string]model.Offer, len(catalog))
	for _, o := range catalog {
		byID[o.ID] = o
	}
	return &OfferService{catalog: catalog, byID: byID, events: events, accrual: accrual}
}

// Get returns an active offer or ErrUnknownOffer.
func (s *OfferService) Get(id string) (model.Offer, error) {
	o, ok := s.byID[id]
	if !ok || !o.Active {
		return model.Offer{}, ErrUnknownOffer
	}
	return o, nil
}

// List returns the active offers. When uuid is set, completed offers are marked.
func (s *OfferService) List(ctx context.Context, uuid string) ([]OfferView, error) {
	done := map[string]bool{}
	if uuid != "" {
		ids, err := s.events.CompletedOfferIDs(ctx, uuid)
		if err != nil {
			return nil, storeErr("list completed offers", err)
		}
		for _, id := range ids {
			done[id] = true
		}
	}

	views := make([]OfferView, 0, len(s.catalog))
	for _, o := range s.catalog {
		if !o.Active {
			continue
		}
		views = append(views, OfferView{Offer: o, Completed: done[o.ID]})
	}
	return views, nil
}

// HasCompletedOffer reports whether uuid already completed offerID.
func (s *OfferService) HasCompletedOffer(ctx context.Context, uuid, offerID string) (bool, error) {
	done, err := s.events.HasCompletedOffer(ctx, uuid, offerID)
	if err != nil {
		return false, storeErr("check offer completion", err)
	}
	return done, nil
}

// Click records intent on an offer and returns it so the caller can redirect.
func (s *OfferService) Click(ctx context.Context, uuid, offerID string) (model.Offer, *model.UserAccount, error) {
	o, err := s.Get(offerID)
	if err != nil {
		return model.Offer{}, nil, err
	}
	user, err := s.accrual.OfferClick(ctx, uuid, o.ID)
	return o, user, err
}

// Complete credits the offer reward once per account.
func (s *OfferService) Complete(ctx context.Context, uuid, offerID string) (*model.UserAccount, error) {
	o, err := s.Get(offerID)
	if err != nil {
		return nil, err
	}

	done, err := s.HasCompletedOffer(ctx, uuid, o.ID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, ErrOfferAlreadyCompleted
	}

	user, err := s.accrual.CompleteOffer(ctx, uuid, o.ID, o.Reward)
	if errors.Is(err, repository.ErrDuplicateRecord) {
		return nil, ErrOfferAlreadyCompleted
	}
	return user, err
}
