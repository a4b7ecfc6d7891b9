package validators

import "go.mongodb.org/mongo-driver/bson"

var EventValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"description",
			"status",
			"format",
			"creator_id",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 200,
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 5000,
			},

			"visit_cost": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
			},

			"city": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},

			"address": bson.M{
				"bsonType":  "string",
				"maxLength": 300,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"open",
					"close",
				},
			},

			"format": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"photo": bson.M{
				"bsonType": "string",
			},

			"creator_id": bson.M{
				"bsonType": "string",
			},

			"registration_link": bson.M{
				"bsonType": "string",
			},

			"custom_fields": bson.M{
				"bsonType": "array",
				"maxItems": 50,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"id", "title"},
					"properties": bson.M{
						"id": bson.M{
							"bsonType": "string",
						},
						"title": bson.M{
							"bsonType":  "string",
							"minLength": 1,
							"maxLength": 200,
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
