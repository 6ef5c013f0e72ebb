package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/classroom/v1"
)

func TestFormatDue(t *testing.T) {
	tests := []struct {
		name string
		due  *DueDate
		want string
	}{
		{"absent", nil, "No due date"},
		{"empty object", &DueDate{}, "No due date"},
		{"full", &DueDate{Year: 2024, Month: 5, Day: 1}, "2024-5-1"},
		{"no padding", &DueDate{Year: 2024, Month: 12, Day: 31}, "2024-12-31"},
		{"missing day", &DueDate{Year: 2024, Month: 5}, "2024-5-N/A"},
		{"missing year", &DueDate{Month: 5, Day: 1}, "N/A-5-1"},
		{"only day", &DueDate{Day: 9}, "N/A-N/A-9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDue(tt.due))
		})
	}
}

func TestDueDateFrom(t *testing.T) {
	assert.Nil(t, dueDateFrom(nil))
	assert.Equal(t, &DueDate{Year: 2024, Month: 5, Day: 1},
		dueDateFrom(&classroom.Date{Year: 2024, Month: 5, Day: 1}))
}
