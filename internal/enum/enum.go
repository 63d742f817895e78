package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusReceived = "recebido"
	OrderStatusReady    = "pronto"
	OrderStatusPickedUp = "retirado"
)

// OrderStatuses lists every accepted status in board order.
var OrderStatuses = []string{OrderStatusReceived, OrderStatusReady, OrderStatusPickedUp}

func IsOrderStatus(s string) bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

const (
	StockMovementPending = "pending"
	StockMovementApplied = "applied"
	StockMovementFailed  = "failed"
)

// ── Group C: Borderline (validated in the service) ──

const (
	UserRoleStaff = "STAFF"
	UserRoleAdmin = "ADMIN"
)

const (
	FulfillmentNow       = "agora"
	FulfillmentScheduled = "agendado"
)

func IsFulfillmentType(s string) bool {
	return s == FulfillmentNow || s == FulfillmentScheduled
}

// ── Group B: Configurable labels (no DB constraint) ──

const (
	// CategoryUncategorized labels add-on sales of products without a category.
	CategoryUncategorized = "Outros"
	DefaultCustomerName   = "Cliente"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)
