package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// FromWatermill copies bus message metadata into a runtime Metadata map.
func FromWatermill(md message.Metadata) Metadata {
	if len(md) == 0 {
		return Metadata{}
	}

	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// ToWatermill copies a runtime Metadata map into the shape the bus wants.
func ToWatermill(md Metadata) message.Metadata {
	if len(md) == 0 {
		return message.Metadata{}
	}

	out := make(message.Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
