package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullPlanRequest = `ช่วยวางแผนการเดินทางท่องเที่ยวแบบละเอียดที่สุด ตามเงื่อนไขต่อไปนี้ :
- ต้นทาง: กรุงเทพ
- ปลายทาง: เชียงใหม่
- ช่วงเวลาเดินทาง: วันที่: 2025-05-17 ถึงวันที่ 2025-05-22
- งบประมาณรวม: ไม่เกิน 20,000 บาท
- จำนวนผู้เดินทาง: 2
- ความต้องการพิเศษ: อาหารมังสวิรัติ, คาเฟ่ • ธรรมชาติ`

func TestExtractFields_FullForm(t *testing.T) {
	f := ExtractFields(fullPlanRequest)

	assert.Equal(t, "กรุงเทพ", f.Origin)
	assert.Equal(t, "เชียงใหม่", f.Destination)
	assert.Equal(t, "2025-05-17", f.StartDate)
	assert.Equal(t, "2025-05-22", f.EndDate)
	assert.Equal(t, "20,000", f.Budget)
	assert.True(t, f.BudgetAmount.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, 2, f.NumTravelers)
	assert.Equal(t, []string{"อาหารมังสวิรัติ", "คาเฟ่", "ธรรมชาติ"}, f.Preferences)
	assert.True(t, f.HasAny())
	assert.True(t, f.HasDestination())
}

func TestExtractFields_Defaults(t *testing.T) {
	f := ExtractFields("ร้านอาหารอร่อยในหัวหิน")

	assert.Equal(t, Defaults(), f)
	assert.False(t, f.HasAny())
	assert.False(t, f.HasDestination())
	assert.Equal(t, 0, f.TripDays())

	_, ok := f.PerDayBudget()
	assert.False(t, ok)
}

func TestExtractFields_SingleDayTrip(t *testing.T) {
	f := ExtractFields("ช่วงเวลาเดินทาง: วันที่: 2025-06-01")

	assert.Equal(t, "2025-06-01", f.StartDate)
	assert.Equal(t, "2025-06-01", f.EndDate)
	assert.Equal(t, 1, f.TripDays())
}

func TestPerDayBudget(t *testing.T) {
	f := ExtractFields(fullPlanRequest)

	require.Equal(t, 6, f.TripDays())
	perDay, ok := f.PerDayBudget()
	require.True(t, ok)
	assert.Equal(t, "3333.33", perDay.StringFixed(2))
}

func TestMerge(t *testing.T) {
	stored := ExtractFields(fullPlanRequest)
	update := ExtractFields("ปลายทาง: เชียงราย")

	merged := stored.Merge(update)
	assert.Equal(t, "เชียงราย", merged.Destination)
	assert.Equal(t, "กรุงเทพ", merged.Origin)
	assert.Equal(t, "2025-05-17", merged.StartDate)
	assert.Equal(t, 2, merged.NumTravelers)
}
