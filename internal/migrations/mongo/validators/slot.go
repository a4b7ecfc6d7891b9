package validators

import "go.mongodb.org/mongo-driver/bson"

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"event_id",
			"start_date",
			"end_date",
			"start_time",
			"end_time",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"event_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"start_date": bson.M{
				"bsonType": "date",
			},

			"end_date": bson.M{
				"bsonType": "date",
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  "^([01][0-9]|2[0-3]):[0-5][0-9]$",
			},

			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  "^([01][0-9]|2[0-3]):[0-5][0-9]$",
			},

			"seats_left": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"seats_total": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
