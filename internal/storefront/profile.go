package storefront

import (
	"sort"
	"strings"

	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// PhoneNotLinked is shown in place of a missing phone number.
const PhoneNotLinked = "Не привязан"

// Profile is the profile screen.
type Profile struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Username  string  `json:"username"`
	Phone     string  `json:"phone"`
	Balance   float64 `json:"balance"`
	CartCount int     `json:"cart_count"`
}

// Profile builds the profile screen from the session.
func (s *Service) Profile() Profile {
	snap := s.session.Snapshot()

	out := Profile{
		Phone:     PhoneNotLinked,
		Balance:   snap.Balance(),
		CartCount: s.cart.Count(),
	}
	if snap.PhoneNumber != "" {
		out.Phone = FormatPhone(snap.PhoneNumber)
	}
	if snap.Participant != nil {
		tp := snap.Participant.Profile()
		out.FirstName = tp.FirstName
		out.LastName = tp.LastName
		out.Username = tp.Username
	}
	return out
}

// FormatPhone renders a Russian number as +7 (XXX) XXX-XX-XX. Numbers that are not 10 or
// 11 digits long are returned unchanged.
func FormatPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch len(digits) {
	case 11:
		if digits[0] == '7' || digits[0] == '8' {
			digits = digits[1:]
		}
	case 10:
	default:
		return phone
	}

	return "+7 (" + digits[0:3] + ") " + digits[3:6] + "-" + digits[6:8] + "-" + digits[8:10]
}

// SortNewestFirst orders by creation time, newest first.
func SortNewestFirst(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
