package validators

import "go.mongodb.org/mongo-driver/bson"

var TeamValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
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
				"maxLength": 100,
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
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

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
