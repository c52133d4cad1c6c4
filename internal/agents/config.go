package agents

import (
	"tripmind/internal/domain/session"
)

// HandlerConfig describes how a handler builds prompts and stores answers
type HandlerConfig struct {
	ID             HandlerID
	Name           string
	Description    string
	PromptTemplate string

	// Marker is the structural heading a complete answer must carry; empty
	// when the handler has none.
	Marker string

	Enrichment []Source
	Tools      []string

	// StatusText is the partial sent before this handler runs in a full plan
	StatusText string
	// SectionTitle heads this handler's excerpt in the trip planner prompt
	SectionTitle string
	// FallbackText replaces a failed section in a full plan
	FallbackText string

	ResponseKey session.StateKey
}

// HasEnrichment reports whether the handler uses the given source
func (c HandlerConfig) HasEnrichment(src Source) bool {
	for _, s := range c.Enrichment {
		if s == src {
			return true
		}
	}
	return false
}

// HasTool reports whether the handler exposes the named tool
func (c HandlerConfig) HasTool(name string) bool {
	for _, t := range c.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// DefaultHandlerConfigs holds the built-in handler table
var DefaultHandlerConfigs = map[HandlerID]HandlerConfig{
	HandlerAccommodation: {
		ID:             HandlerAccommodation,
		Name:           "AccommodationAgent",
		Description:    "ผู้เชี่ยวชาญด้านที่พัก แนะนำโรงแรม รีสอร์ท และโฮสเทลตามงบประมาณ",
		PromptTemplate: "prompts/accommodation",
		StatusText:     "กำลังรวบรวมข้อมูลที่พัก...",
		SectionTitle:   "ข้อมูลที่พัก:",
		FallbackText:   "ขออภัยค่ะ ยังไม่สามารถรวบรวมข้อมูลที่พักได้ในขณะนี้ แนะนำให้เลือกที่พักใกล้ตัวเมืองหรือแหล่งท่องเที่ยวหลัก และเปรียบเทียบราคาจากเว็บไซต์จองที่พักก่อนเดินทาง",
		ResponseKey:    session.KeyAccommodationResponse,
	},
	HandlerActivity: {
		ID:             HandlerActivity,
		Name:           "ActivityAgent",
		Description:    "ผู้เชี่ยวชาญด้านสถานที่ท่องเที่ยวและกิจกรรม",
		PromptTemplate: "prompts/activity",
		Enrichment:     []Source{SourceWebSearch},
		Tools:          []string{ToolSearchWeb},
		StatusText:     "กำลังรวบรวมข้อมูลสถานที่ท่องเที่ยวและกิจกรรมที่น่าสนใจ...",
		SectionTitle:   "ข้อมูลสถานที่ท่องเที่ยวและกิจกรรม:",
		FallbackText:   "ขออภัยค่ะ ยังไม่สามารถรวบรวมข้อมูลสถานที่ท่องเที่ยวได้ในขณะนี้ แนะนำให้เริ่มจากวัดสำคัญ ตลาดท้องถิ่น และจุดชมวิวยอดนิยมของจังหวัด",
		ResponseKey:    session.KeyActivityResponse,
	},
	HandlerRestaurant: {
		ID:             HandlerRestaurant,
		Name:           "RestaurantAgent",
		Description:    "ผู้เชี่ยวชาญด้านอาหารและร้านอาหารท้องถิ่น",
		PromptTemplate: "prompts/restaurant",
		StatusText:     "กำลังหาร้านอาหารที่น่าสนใจ...",
		SectionTitle:   "ข้อมูลร้านอาหาร:",
		FallbackText:   "ขออภัยค่ะ ยังไม่สามารถรวบรวมข้อมูลร้านอาหารได้ในขณะนี้ แนะนำให้ลองอาหารท้องถิ่นในตลาดเช้าและถนนคนเดินของจังหวัด",
		ResponseKey:    session.KeyRestaurantResponse,
	},
	HandlerTransportation: {
		ID:             HandlerTransportation,
		Name:           "TransportationAgent",
		Description:    "ผู้เชี่ยวชาญด้านการเดินทางระหว่างจังหวัดและในพื้นที่",
		PromptTemplate: "prompts/transportation",
		StatusText:     "กำลังหาข้อมูลเกี่ยวกับการเดินทาง...",
		SectionTitle:   "ข้อมูลการเดินทาง:",
		FallbackText:   "ขออภัยค่ะ ยังไม่สามารถรวบรวมข้อมูลการเดินทางได้ในขณะนี้ แนะนำให้ตรวจสอบเที่ยวบิน รถไฟ และรถทัวร์ล่วงหน้าจากผู้ให้บริการโดยตรง",
		ResponseKey:    session.KeyTransportationResponse,
	},
	HandlerTripPlanner: {
		ID:             HandlerTripPlanner,
		Name:           "TripPlannerAgent",
		Description:    "ผู้วางแผนการเดินทางแบบครบวงจร จัดทำแผนรายวันพร้อมค่าใช้จ่าย",
		PromptTemplate: "prompts/trip_planner",
		Marker:         TripPlanMarker,
		Enrichment:     []Source{SourceVideoSearch},
		StatusText:     "กำลังจัดทำแผนการเดินทางแบบสมบูรณ์...",
		FallbackText:   "ขออภัยค่ะ ยังไม่สามารถจัดทำแผนการเดินทางฉบับสมบูรณ์ได้ในขณะนี้ กรุณาดูข้อมูลแต่ละหัวข้อด้านบนประกอบการวางแผน",
		ResponseKey:    session.KeyTripPlannerResponse,
	},
	HandlerGeneral: {
		ID:             HandlerGeneral,
		Name:           "TravelAssistant",
		Description:    "ผู้ช่วยตอบคำถามทั่วไปเกี่ยวกับการเดินทางในประเทศไทย",
		PromptTemplate: "prompts/general",
		FallbackText:   "ขออภัยค่ะ ฉันยังไม่เข้าใจคำถามของคุณ กรุณาถามใหม่อีกครั้งค่ะ",
		ResponseKey:    session.KeyGeneralResponse,
	},
}
