package book

// priceLevel is a FIFO queue of resting orders sharing a side and price.
type priceLevel struct {
	price  float64
	orders []*Order
}

// popHead drops the head order once it has been fully consumed.
func (l *priceLevel) popHead() {
	l.orders = l.orders[1:]
}

// remove deletes the order at index i, preserving FIFO order of the rest.
func (l *priceLevel) remove(i int) {
	l.orders = append(l.orders[:i], l.orders[i+1:]...)
}
