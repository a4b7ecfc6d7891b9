package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"event_id",
			"slot_id",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"event_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"slot_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"expires_at": bson.M{
				"bsonType": "date",
			},

			"answers": bson.M{
				"bsonType": "array",
				"maxItems": 50,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"field_id", "title", "value"},
					"properties": bson.M{
						"field_id": bson.M{
							"bsonType": "string",
						},
						"title": bson.M{
							"bsonType":  "string",
							"maxLength": 200,
						},
						"value": bson.M{
							"bsonType":  "string",
							"maxLength": 2000,
						},
					},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
