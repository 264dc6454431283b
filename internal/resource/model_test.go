package resource_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/resource"
)

func TestCapacity(t *testing.T) {
	flat := &resource.Resource{Capacity: resource.Capacity{Total: 4}}
	assert.Equal(t, 4, flat.MaxParty())
	assert.True(t, flat.AcceptsParty(4))
	assert.False(t, flat.AcceptsParty(5))
	assert.False(t, flat.AcceptsParty(0))

	split := &resource.Resource{Capacity: resource.Capacity{Adults: 2, Children: 1}}
	assert.Equal(t, 3, split.MaxParty())
	assert.True(t, split.AcceptsParty(3))
	assert.False(t, split.AcceptsParty(4))
}

func TestQuote(t *testing.T) {
	hourly := &resource.Resource{PricePerUnit: 1000}
	assert.Equal(t, int64(2000), hourly.Quote(at(3, 10, 0), at(3, 12, 0)))
	assert.Equal(t, int64(1500), hourly.Quote(at(3, 10, 0), at(3, 11, 30)))
	// 61 minutes at 1000/hour rounds up
	assert.Equal(t, int64(1017), hourly.Quote(at(3, 10, 0), at(3, 11, 1)))

	slotted := &resource.Resource{PricePerUnit: 2500, SlotMinutes: 90}
	assert.Equal(t, int64(2500), slotted.Quote(at(3, 19, 0), at(3, 20, 30)))
}
