package course

import (
	"errors"
	"time"
)

type Course struct {
	ID            string    `json:"id" db:"course_id"`
	Title         string    `json:"title" db:"title"`
	Subtitle      string    `json:"subtitle" db:"subtitle"`
	Description   string    `json:"description" db:"description"`
	Price         int       `json:"price" db:"price"`
	DiscountPrice *int      `json:"discountPrice,omitempty" db:"discount_price"`
	CategoryID    *string   `json:"categoryId,omitempty" db:"category_id"`
	Tag           *string   `json:"tag,omitempty" db:"tag"`
	CommunityLink *string   `json:"communityLink,omitempty" db:"community_link"`
	ThumbnailURL  *string   `json:"thumbnailUrl,omitempty" db:"thumbnail_url"`
	Active        bool      `json:"isActive" db:"is_active"`
	ViewCount     int       `json:"viewCount" db:"view_count"`
	PurchaseCount int       `json:"purchaseCount" db:"purchase_count"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// EffectivePrice is the amount a buyer pays: the discount price when it is
// set and lower than the list price, the list price otherwise.
func (c Course) EffectivePrice() int {
	if c.DiscountPrice != nil && *c.DiscountPrice < c.Price {
		return *c.DiscountPrice
	}
	return c.Price
}

// MinorUnits is EffectivePrice in the smallest currency unit (paise).
func (c Course) MinorUnits() int64 {
	return int64(c.EffectivePrice()) * 100
}

// Public hides the community invite, which is only shown to owners.
func (c Course) Public() Course {
	c.CommunityLink = nil
	return c
}

var ErrInvalidPrice = errors.New("price must not be negative")

// Validate checks the invariants the database cannot express on its own.
func (c Course) Validate() error {
	if c.Title == "" {
		return errors.New("title is required")
	}
	if c.Price < 0 {
		return ErrInvalidPrice
	}
	if c.DiscountPrice != nil && *c.DiscountPrice < 0 {
		return ErrInvalidPrice
	}
	return nil
}

type CourseNew struct {
	Title         string  `json:"title" validate:"required"`
	Subtitle      string  `json:"subtitle"`
	Description   string  `json:"description"`
	Price         int     `json:"price" validate:"gte=0,lte=1000000"`
	DiscountPrice *int    `json:"discountPrice" validate:"omitempty,gte=0,lte=1000000"`
	CategoryID    *string `json:"categoryId" validate:"omitempty,uuid"`
	Tag           *string `json:"tag"`
	CommunityLink *string `json:"communityLink" validate:"omitempty,url"`
	ThumbnailURL  *string `json:"thumbnailUrl" validate:"omitempty,url"`
}

type CourseUp struct {
	Title         *string `json:"title"`
	Subtitle      *string `json:"subtitle"`
	Description   *string `json:"description"`
	Price         *int    `json:"price" validate:"omitempty,gte=0,lte=1000000"`
	DiscountPrice *int    `json:"discountPrice" validate:"omitempty,gte=0,lte=1000000"`
	ClearDiscount bool    `json:"clearDiscount" validate:"excluded_with=DiscountPrice"`
	CategoryID    *string `json:"categoryId" validate:"omitempty,uuid"`
	Tag           *string `json:"tag"`
	CommunityLink *string `json:"communityLink" validate:"omitempty,url"`
	ThumbnailURL  *string `json:"thumbnailUrl" validate:"omitempty,url"`
}

// Apply copies the set fields of up onto c.
func (up CourseUp) Apply(c Course) Course {
	if up.Title != nil {
		c.Title = *up.Title
	}
	if up.Subtitle != nil {
		c.Subtitle = *up.Subtitle
	}
	if up.Description != nil {
		c.Description = *up.Description
	}
	if up.Price != nil {
		c.Price = *up.Price
	}
	if up.DiscountPrice != nil {
		c.DiscountPrice = up.DiscountPrice
	}
	if up.ClearDiscount {
		c.DiscountPrice = nil
	}
	if up.CategoryID != nil {
		c.CategoryID = up.CategoryID
	}
	if up.Tag != nil {
		c.Tag = up.Tag
	}
	if up.CommunityLink != nil {
		c.CommunityLink = up.CommunityLink
	}
	if up.ThumbnailURL != nil {
		c.ThumbnailURL = up.ThumbnailURL
	}
	return c
}

type ActiveUp struct {
	Active *bool `json:"is_active"`
}
