package validators

import "go.mongodb.org/mongo-driver/bson"

var UserValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"full_name",
			"email",
			"role",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"full_name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"email": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 254,
			},

			"role": bson.M{
				"bsonType": "string",
				"enum": []string{
					"student",
					"faculty",
					"alumni",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
