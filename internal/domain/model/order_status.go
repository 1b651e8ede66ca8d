package model

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"

	OrderStatusCancellationRequested OrderStatus = "CANCELLATION_REQUESTED"
	OrderStatusReturnRequested       OrderStatus = "RETURN_REQUESTED"
	OrderStatusExchangeRequested     OrderStatus = "EXCHANGE_REQUESTED"

	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusReturned  OrderStatus = "RETURNED"
	OrderStatusExchanged OrderStatus = "EXCHANGED"
)

// 遷移表。申請状態からの戻りは申請前のステータスへのみ（status_before_requestで判断）。
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancellationRequested, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancellationRequested, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: {OrderStatusReturnRequested, OrderStatusExchangeRequested},

	OrderStatusCancellationRequested: {OrderStatusCancelled, OrderStatusPending, OrderStatusConfirmed},
	OrderStatusReturnRequested:       {OrderStatusReturned, OrderStatusDelivered},
	OrderStatusExchangeRequested:     {OrderStatusExchanged, OrderStatusDelivered},

	OrderStatusCancelled: {},
	OrderStatusReturned:  {},
	OrderStatusExchanged: {},
}

// 通常フローの次ステータス
var forwardStep = map[OrderStatus]OrderStatus{
	OrderStatusPending:   OrderStatusConfirmed,
	OrderStatusConfirmed: OrderStatusShipped,
	OrderStatusShipped:   OrderStatusDelivered,
}

func (s OrderStatus) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	next, ok := validTransitions[s]
	return ok && len(next) == 0
}

func (s OrderStatus) IsRequest() bool {
	switch s {
	case OrderStatusCancellationRequested, OrderStatusReturnRequested, OrderStatusExchangeRequested:
		return true
	}
	return false
}

// Next は通常フローの次のステータスを返す。
func (s OrderStatus) Next() (OrderStatus, bool) {
	n, ok := forwardStep[s]
	return n, ok
}
