package validators

import "go.mongodb.org/mongo-driver/bson"

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"owner_id",
			"start_time",
			"end_time",
			"capacity",
			"bookings",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"title": bson.M{
				"bsonType":  "string",
				"maxLength": 120,
			},

			"location": bson.M{
				"bsonType":  "string",
				"maxLength": 120,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"capacity": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  500,
			},

			"bookings": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
