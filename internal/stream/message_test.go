package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnMessage_WireFormat(t *testing.T) {
	tests := []struct {
		name     string
		msg      TurnMessage
		expected string
	}{
		{"partial", PartialMessage("กำลังค้นหา"), `{"message":"กำลังค้นหา","partial":true}`},
		{"final", FinalMessage("done"), `{"message":"done","final":true}`},
		{"error", ErrorMessage("sorry"), `{"message":"sorry","final":true,"error":true}`},
		{"turn complete", TurnComplete(), `{"turn_complete":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))

			var back TurnMessage
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.msg, back)
		})
	}
}

func TestValidateTurn(t *testing.T) {
	assert.True(t, ValidateTurn([]TurnMessage{FinalMessage("a"), TurnComplete()}))
	assert.True(t, ValidateTurn([]TurnMessage{PartialMessage("p"), PartialMessage("q"), ErrorMessage("e"), TurnComplete()}))

	assert.False(t, ValidateTurn(nil))
	assert.False(t, ValidateTurn([]TurnMessage{PartialMessage("p")}))
	assert.False(t, ValidateTurn([]TurnMessage{FinalMessage("a")}))
	assert.False(t, ValidateTurn([]TurnMessage{FinalMessage("a"), FinalMessage("b"), TurnComplete()}))
	assert.False(t, ValidateTurn([]TurnMessage{FinalMessage("a"), TurnComplete(), PartialMessage("late")}))
}
