package models

// CartData maps a product id to the quantity held for each size label.
//
// The methods keep one invariant: an item never maps to an empty size set and
// a size never holds a quantity <= 0. Mutating methods need a non-nil map;
// use NewCartData or Clone to obtain one.
type CartData map[string]map[string]int

func NewCartData() CartData {
	return CartData{}
}

// Quantity returns the quantity stored for itemID/size, 0 when absent.
func (c CartData) Quantity(itemID, size string) int {
	return c[itemID][size]
}

// Add increments itemID/size by one and returns the new quantity.
func (c CartData) Add(itemID, size string) int {
	sizes, ok := c[itemID]
	if !ok {
		sizes = make(map[string]int)
		c[itemID] = sizes
	}
	sizes[size]++
	return sizes[size]
}

// SetQuantity stores quantity verbatim. A quantity <= 0 removes the entry.
func (c CartData) SetQuantity(itemID, size string, quantity int) {
	if quantity <= 0 {
		c.Remove(itemID, size)
		return
	}
	sizes, ok := c[itemID]
	if !ok {
		sizes = make(map[string]int)
		c[itemID] = sizes
	}
	sizes[size] = quantity
}

// Remove deletes itemID/size and drops itemID once it has no sizes left.
// It reports whether an entry was removed.
func (c CartData) Remove(itemID, size string) bool {
	sizes, ok := c[itemID]
	if !ok {
		return false
	}
	_, existed := sizes[size]
	delete(sizes, size)
	if len(sizes) == 0 {
		delete(c, itemID)
	}
	return existed
}

// Clone returns a deep copy with invalid entries pruned. A nil receiver
// yields an empty, writable map.
func (c CartData) Clone() CartData {
	out := make(CartData, len(c))
	for itemID, sizes := range c {
		for size, qty := range sizes {
			if qty <= 0 {
				continue
			}
			if out[itemID] == nil {
				out[itemID] = make(map[string]int, len(sizes))
			}
			out[itemID][size] = qty
		}
	}
	return out
}

// Count is the total number of units in the cart.
func (c CartData) Count() int {
	total := 0
	for _, sizes := range c {
		for _, qty := range sizes {
			total += qty
		}
	}
	return total
}
