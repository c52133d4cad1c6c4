package agents

// HandlerID identifies a prompt-driven handler
type HandlerID string

const (
	HandlerAccommodation  HandlerID = "accommodation"
	HandlerActivity       HandlerID = "activity"
	HandlerRestaurant     HandlerID = "restaurant"
	HandlerTransportation HandlerID = "transportation"
	HandlerTripPlanner    HandlerID = "trip_planner"
	HandlerGeneral        HandlerID = "general"
)

// AllHandlers lists every handler in a stable order
var AllHandlers = []HandlerID{
	HandlerAccommodation,
	HandlerActivity,
	HandlerRestaurant,
	HandlerTransportation,
	HandlerTripPlanner,
	HandlerGeneral,
}

// FullPlanSequence is the fixed order of handlers in a full-plan request
var FullPlanSequence = []HandlerID{
	HandlerTransportation,
	HandlerAccommodation,
	HandlerRestaurant,
	HandlerActivity,
	HandlerTripPlanner,
}

// ParseHandlerID converts a raw string into a known HandlerID
func ParseHandlerID(raw string) (HandlerID, bool) {
	for _, id := range AllHandlers {
		if string(id) == raw {
			return id, true
		}
	}
	return "", false
}

func (h HandlerID) String() string { return string(h) }

// Source names an enrichment collaborator a handler may use
type Source string

const (
	SourceWebSearch   Source = "web_search"
	SourceVideoSearch Source = "video_search"
)

// TripPlanMarker heads every complete trip plan
const TripPlanMarker = "===== แผนการเดินทางของคุณ ====="

// ToolSearchWeb is the function tool exposed to handlers with web search
const ToolSearchWeb = "search_web"
