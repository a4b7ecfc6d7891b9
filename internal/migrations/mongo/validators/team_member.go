package validators

import "go.mongodb.org/mongo-driver/bson"

var TeamMemberValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"team_id",
			"is_admin",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"team_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"is_admin": bson.M{
				"bsonType": "bool",
			},

			"invite_token": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
