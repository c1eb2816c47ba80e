package mockbackend

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/loyalty-miniapp/internal/backend"
	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// rejection is a request the backend refuses with 400 and a user-facing detail.
type rejection string

func (r rejection) Error() string { return string(r) }

const (
	errUnknownProduct     rejection = "Товар не найден"
	errProductUnavailable rejection = "Товар недоступен для заказа"
	errBadQuantity        rejection = "Некорректное количество товара"
	errPriceChanged       rejection = "Цена товара изменилась"
	errInsufficient       rejection = "Недостаточно баллов на балансе"
	errEmptyOrder         rejection = "Заказ не содержит товаров"
	errNotLinked          rejection = "Telegram-аккаунт не привязан"
)

func (r rejection) about(name string) rejection {
	return rejection(string(r) + ": " + name)
}

type link struct {
	participant *models.Participant
	activeAt    time.Time
}

// store is the in-memory state of the mock backend.
type store struct {
	seed      *Seed
	linkDelay time.Duration
	now       func() time.Time

	mu     sync.Mutex
	links  map[string]*link
	orders map[string][]models.Order
	seq    int
}

func newStore(seed *Seed, linkDelay time.Duration) *store {
	return &store{
		seed:      seed,
		linkDelay: linkDelay,
		now:       time.Now,
		links:     make(map[string]*link),
		orders:    make(map[string][]models.Order),
	}
}

// identityFromInitData returns the telegram user id from init data, or the raw value when
// it carries no user.
func identityFromInitData(initData string) string {
	if id, ok := backend.TelegramUserID(initData); ok {
		return id
	}
	return initData
}

func (s *store) newParticipant(telegramID, phone string, profile *models.TelegramProfile) *models.Participant {
	p := &models.Participant{
		ID:          s.seed.Participant.ID,
		PhoneNumber: s.seed.Participant.PhoneNumber,
		Balance:     s.seed.Participant.Balance,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if phone != "" {
		p.PhoneNumber = phone
	}
	if profile == nil {
		profile = &models.TelegramProfile{}
	}
	profile.ID = models.FlexibleID(telegramID)
	p.TelegramProfile = profile
	return p
}

// linkedParticipant returns a copy of the participant linked to identity, if the link is active.
func (s *store) linkedParticipant(identity string) (*models.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.linkedLocked(identity)
	return p.Clone(), ok
}

func (s *store) linkedLocked(identity string) (*models.Participant, bool) {
	l, ok := s.links[identity]
	if !ok && s.seed.AlwaysLinked {
		l = &link{participant: s.newParticipant(identity, "", nil), activeAt: s.now()}
		s.links[identity] = l
		ok = true
	}
	if !ok || s.now().Before(l.activeAt) {
		return nil, false
	}
	return l.participant, true
}

// link records a telegram account as linked. It becomes visible to check-link after the
// configured delay.
func (s *store) link(telegramID, phone string, profile *models.TelegramProfile) *models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.links[telegramID]; ok {
		if phone != "" {
			l.participant.PhoneNumber = phone
		}
		return l.participant.Clone()
	}

	p := s.newParticipant(telegramID, phone, profile)
	s.links[telegramID] = &link{participant: p, activeAt: s.now().Add(s.linkDelay)}
	return p.Clone()
}

func (s *store) findProduct(guid string) (models.Product, bool) {
	for _, p := range s.seed.Products {
		if p.GUID == guid {
			return p, true
		}
	}
	return models.Product{}, false
}

// createOrder validates the items against the catalog and the balance, then debits it.
func (s *store) createOrder(identity string, req models.CreateOrderRequest) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.linkedLocked(identity)
	if !ok {
		return nil, errNotLinked
	}
	if len(req.Items) == 0 {
		return nil, errEmptyOrder
	}

	order := models.Order{
		ID:         uuid.NewString(),
		CreatedAt:  s.now().UTC(),
		Status:     models.OrderStatusNew,
		Commentary: req.Commentary,
	}
	for _, it := range req.Items {
		product, ok := s.findProduct(it.Product)
		switch {
		case !ok:
			return nil, errUnknownProduct.about(it.Product)
		case !product.IsAvailable:
			return nil, errProductUnavailable.about(product.Name)
		case it.Quantity < 1:
			return nil, errBadQuantity
		case it.Price != product.Price:
			return nil, errPriceChanged.about(product.Name)
		}
		order.Items = append(order.Items, models.OrderItem{
			Product:  models.OrderProduct{GUID: product.GUID, Name: product.Name},
			Quantity: it.Quantity,
			Price:    product.Price,
		})
	}

	total := order.Total()
	if total > p.Balance {
		return nil, errInsufficient
	}

	p.Balance -= total
	s.seq++
	order.OrderNumber = fmt.Sprintf("TG-%05d", s.seq)
	s.orders[identity] = append(s.orders[identity], order)
	return &order, nil
}

// listOrders returns orders of identity, newest first.
func (s *store) listOrders(identity string) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.linkedLocked(identity); !ok {
		return nil, errNotLinked
	}

	orders := append([]models.Order(nil), s.orders[identity]...)
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// filterProducts applies the optional category guid filter.
func (s *store) filterProducts(category string) []models.Product {
	category = strings.TrimSpace(category)
	out := make([]models.Product, 0, len(s.seed.Products))
	for _, p := range s.seed.Products {
		if category != "" && (p.Category == nil || p.Category.GUID != category) {
			continue
		}
		out = append(out, p)
	}
	return out
}
