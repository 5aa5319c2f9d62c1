package usage

import (
	"gateway/pkg/models"
)

const currency = "INR"

// unitPrices is the provider-independent price table in paise per billable
// unit: per segment for SMS, per message for WhatsApp and email, per call for
// voice.
var unitPrices = map[models.EventType]int64{
	models.EventSMSOTP:           15,
	models.EventSMSTransactional: 20,
	models.EventSMSPromotional:   25,
	models.EventWhatsAppSession:  35,
	models.EventWhatsAppTemplate: 80,
	models.EventEmailOutbound:    5,
	models.EventVoiceOutbound:    60,
}

// GetCostEstimate is a pure function of the price table. For SMS, units is
// the segment count, never the character count, because providers bill per
// segment.
func GetCostEstimate(channel models.ChannelType, eventType models.EventType, units int) CostEstimate {
	if eventType == "" {
		eventType = models.DefaultEventType(channel)
	}
	if units < 1 {
		units = 1
	}

	price := unitPrices[eventType]
	return CostEstimate{
		ChannelType: channel,
		EventType:   eventType,
		Units:       units,
		UnitPrice:   price,
		Total:       price * int64(units),
		Currency:    currency,
	}
}
