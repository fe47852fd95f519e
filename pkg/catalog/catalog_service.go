// Package catalog serves the product listing, product pages, reviews and votes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/storefront/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultPageSize = 5

type ListFilter struct {
	Category string
	Gender   string
	Query    string
	Page     int
	PageSize int
}

type Page struct {
	Products []models.Product `json:"products"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Total    int64            `json:"total"`
	HasNext  bool             `json:"has_next"`
}

// Flags describe the viewing user's relation to a product. All false for
// anonymous viewers.
type Flags struct {
	Reviewed bool `json:"reviewed"`
	Liked    bool `json:"liked"`
	Disliked bool `json:"disliked"`
	Bought   bool `json:"bought"`
}

type Detail struct {
	Product *models.Product `json:"product"`
	Reviews []models.Review `json:"reviews"`
	Flags   Flags           `json:"flags"`
}

type Votes struct {
	TotalLikes    int  `json:"total_likes"`
	TotalDislikes int  `json:"total_dislikes"`
	Liked         bool `json:"has_liked"`
	Disliked      bool `json:"has_disliked"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// List returns one page of in-stock products matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}

	query := s.db.WithContext(ctx).Model(&models.Product{}).Scopes(models.Undeleted, models.Stocked)
	if c := strings.ToLower(strings.TrimSpace(f.Category)); c != "" {
		query = query.Where("products.id IN (?)", s.db.Table("product_categories").
			Select("product_categories.product_id").
			Joins("JOIN categories ON categories.id = product_categories.category_id").
			Where("LOWER(categories.name) = ?", c))
	}
	if g := strings.ToLower(strings.TrimSpace(f.Gender)); g != "" {
		query = query.Where("products.id IN (?)", s.db.Table("product_genders").
			Select("product_genders.product_id").
			Joins("JOIN genders ON genders.id = product_genders.gender_id").
			Where("LOWER(genders.sex) = ?", g))
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		like := "%" + q + "%"
		query = query.Where("LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ? OR LOWER(products.brand) LIKE ?",
			like, like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	err := query.Session(&gorm.Session{}).Order("products.created_at DESC").Order("products.id").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return &Page{
		Products: products,
		Page:     f.Page,
		PageSize: f.PageSize,
		Total:    total,
		HasNext:  int64(f.Page*f.PageSize) < total,
	}, nil
}

// Product loads a product page. userID may be empty.
func (s *Service) Product(ctx context.Context, productID, userID string) (*Detail, error) {
	db := s.db.WithContext(ctx)

	var product models.Product
	err := db.Scopes(models.Undeleted).
		Preload("Sizes", "quantity > ?", 0).
		Preload("Categories").
		Preload("Genders").
		Where("id = ?", productID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	var reviews []models.Review
	if err := db.Where("product_id = ?", productID).Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}

	detail := &Detail{Product: &product, Reviews: reviews}
	if userID == "" {
		return detail, nil
	}

	for _, r := range reviews {
		if r.UserID == userID {
			detail.Flags.Reviewed = true
			break
		}
	}

	vote, err := findVote(db, userID, productID)
	if err != nil {
		return nil, err
	}
	if vote != nil {
		detail.Flags.Liked = isSet(vote.Like)
		detail.Flags.Disliked = isSet(vote.Dislike)
	}

	var bought int64
	err = db.Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.payment_status = ? AND order_items.product_id = ?",
			userID, models.PaymentPaid, productID).
		Count(&bought).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check purchases: %w", err)
	}
	detail.Flags.Bought = bought > 0

	return detail, nil
}

// CreateReview stores the user's only review of a product and bumps the
// product's review counter in the same transaction.
func (s *Service) CreateReview(ctx context.Context, userID, productID, body string) (*models.Review, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyReview
	}

	review := &models.Review{
		ID:        models.NewID(),
		UserID:    userID,
		ProductID: productID,
		Body:      body,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProduct(tx, productID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Review{}).Where("user_id = ? AND product_id = ?", userID, productID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check reviews: %w", err)
		}
		if existing > 0 {
			return ErrAlreadyReviewed
		}

		if err := tx.Create(review).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyReviewed
			}
			return fmt.Errorf("failed to create review: %w", err)
		}
		return tx.Model(&models.Product{}).Where("id = ?", productID).
			Update("total_reviews", gorm.Expr("total_reviews + ?", 1)).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Review created", zap.String("product_id", productID), zap.String("user_id", userID))
	return review, nil
}

// DeleteReview removes the user's review and decrements the counter, never
// below zero.
func (s *Service) DeleteReview(ctx context.Context, userID, reviewID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var review models.Review
		err := tx.Where("id = ? AND user_id = ?", reviewID, userID).First(&review).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReviewNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load review: %w", err)
		}

		if err := tx.Delete(&review).Error; err != nil {
			return fmt.Errorf("failed to delete review: %w", err)
		}
		return tx.Model(&models.Product{}).Where("id = ? AND total_reviews > ?", review.ProductID, 0).
			Update("total_reviews", gorm.Expr("total_reviews - ?", 1)).Error
	})
}

// ToggleLike likes the product, or takes a like back. Liking clears a dislike.
func (s *Service) ToggleLike(ctx context.Context, userID, productID string) (*Votes, error) {
	return s.toggle(ctx, userID, productID, true)
}

// ToggleDislike dislikes the product, or takes a dislike back. Disliking
// clears a like.
func (s *Service) ToggleDislike(ctx context.Context, userID, productID string) (*Votes, error) {
	return s.toggle(ctx, userID, productID, false)
}

func (s *Service) toggle(ctx context.Context, userID, productID string, like bool) (*Votes, error) {
	on, off := "is_like", "is_dislike"
	if !like {
		on, off = off, on
	}

	var votes *Votes
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProduct(tx, productID); err != nil {
			return err
		}

		vote, err := findVote(tx, userID, productID)
		if err != nil {
			return err
		}

		if vote == nil {
			vote = &models.Like{ID: models.NewID(), UserID: userID, ProductID: productID}
			set := true
			if like {
				vote.Like = &set
			} else {
				vote.Dislike = &set
			}
			if err := tx.Create(vote).Error; err != nil {
				return fmt.Errorf("failed to create vote: %w", err)
			}
		} else {
			current := vote.Dislike
			if like {
				current = vote.Like
			}
			err := tx.Model(&models.Like{}).Where("id = ?", vote.ID).
				Updates(map[string]interface{}{on: !isSet(current), off: nil}).Error
			if err != nil {
				return fmt.Errorf("failed to update vote: %w", err)
			}
		}

		votes, err = recount(tx, userID, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return votes, nil
}

// recount refreshes the product's vote counters from the votes table.
func recount(tx *gorm.DB, userID, productID string) (*Votes, error) {
	var likes, dislikes int64
	if err := tx.Model(&models.Like{}).Where("product_id = ? AND is_like = ?", productID, true).
		Count(&likes).Error; err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}
	if err := tx.Model(&models.Like{}).Where("product_id = ? AND is_dislike = ?", productID, true).
		Count(&dislikes).Error; err != nil {
		return nil, fmt.Errorf("failed to count dislikes: %w", err)
	}

	err := tx.Model(&models.Product{}).Where("id = ?", productID).Updates(map[string]interface{}{
		"total_likes":    likes,
		"total_dislikes": dislikes,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update vote counters: %w", err)
	}

	vote, err := findVote(tx, userID, productID)
	if err != nil {
		return nil, err
	}
	votes := &Votes{TotalLikes: int(likes), TotalDislikes: int(dislikes)}
	if vote != nil {
		votes.Liked = isSet(vote.Like)
		votes.Disliked = isSet(vote.Dislike)
	}
	return votes, nil
}

func lockProduct(tx *gorm.DB, productID string) error {
	var product models.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Scopes(models.Undeleted).
		Select("id").Where("id = ?", productID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load product: %w", err)
	}
	return nil
}

func findVote(db *gorm.DB, userID, productID string) (*models.Like, error) {
	var votes []models.Like
	if err := db.Where("user_id = ? AND product_id = ?", userID, productID).Limit(1).Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("failed to load vote: %w", err)
	}
	if len(votes) == 0 {
		return nil, nil
	}
	return &votes[0], nil
}

func isSet(b *bool) bool {
	return b != nil && *b
}
