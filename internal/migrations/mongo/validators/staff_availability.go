package validators

import "go.mongodb.org/mongo-driver/bson"

// 24:00 marks the end of the day.
const timeOfDayPattern = `^(([01]\d|2[0-3]):[0-5]\d|24:00)$`

var StaffAvailabilityValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"tenant_id",
			"staff_id",
			"day_of_week",
			"work_start",
			"work_end",
			"is_available",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"tenant_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"staff_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"day_of_week": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  6,
			},

			"work_start": bson.M{
				"bsonType": "string",
				"pattern":  timeOfDayPattern,
			},

			"work_end": bson.M{
				"bsonType": "string",
				"pattern":  timeOfDayPattern,
			},

			"break_start": bson.M{
				"bsonType": "string",
				"pattern":  timeOfDayPattern,
			},

			"break_end": bson.M{
				"bsonType": "string",
				"pattern":  timeOfDayPattern,
			},

			"is_available": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
