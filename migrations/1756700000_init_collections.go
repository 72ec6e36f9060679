package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		addUserField := func(f core.Field) {
			if users.Fields.GetByName(f.GetName()) == nil {
				users.Fields.Add(f)
			}
		}
		addUserField(&core.TextField{Name: "name"})
		addUserField(&core.TextField{Name: "phone"})
		addUserField(&core.TextField{Name: "country"})
		addUserField(&core.TextField{Name: "address"})
		addUserField(&core.TextField{Name: "zip_code"})
		addUserField(&core.BoolField{Name: "is_admin"})
		addUserField(&core.TextField{Name: "customer_id"})
		if err := app.Save(users); err != nil {
			return err
		}

		eventTypes := core.NewBaseCollection("event_types")
		eventTypes.Fields.Add(
			&core.TextField{Name: "name", Required: true},
			&core.TextField{Name: "description"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		eventTypes.AddIndex("idx_event_types_name", true, "name", "")
		if err := app.Save(eventTypes); err != nil {
			return err
		}

		events := core.NewBaseCollection("events")
		events.Fields.Add(
			&core.TextField{Name: "name", Required: true},
			&core.TextField{Name: "description"},
			&core.NumberField{Name: "price", Min: types.Pointer(0.0)},
			&core.TextField{Name: "currency"},
			&core.DateField{Name: "start_time"},
			&core.DateField{Name: "end_time"},
			&core.TextField{Name: "location"},
			&core.URLField{Name: "image"},
			&core.RelationField{Name: "organizer", CollectionId: users.Id, MaxSelect: 1},
			&core.RelationField{Name: "event_type", CollectionId: eventTypes.Id, MaxSelect: 1},
			&core.TextField{Name: "product_id"},
			&core.TextField{Name: "price_id"},
			&core.JSONField{Name: "old_price_ids", MaxSize: 10000},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		events.AddIndex("idx_events_name", true, "name", "")
		if err := app.Save(events); err != nil {
			return err
		}

		tickets := core.NewBaseCollection("tickets")
		tickets.Fields.Add(
			&core.RelationField{Name: "event", CollectionId: events.Id, MaxSelect: 1, Required: true},
			&core.RelationField{Name: "user", CollectionId: users.Id, MaxSelect: 1},
			&core.NumberField{Name: "quantity", Min: types.Pointer(1.0), OnlyInt: true},
			&core.TextField{Name: "type"},
			&core.TextField{Name: "code"},
			&core.SelectField{
				Name:      "status",
				Values:    []string{"open", "complete", "expired"},
				MaxSelect: 1,
				Required:  true,
			},
			&core.TextField{Name: "session_id"},
			&core.TextField{Name: "price_id"},
			&core.URLField{Name: "session_url"},
			&core.DateField{Name: "session_created"},
			&core.TextField{Name: "payment_intent"},
			&core.TextField{Name: "payment_status"},
			&core.NumberField{Name: "total_amount", OnlyInt: true},
			&core.TextField{Name: "currency"},
			&core.NumberField{Name: "amount_shipping", OnlyInt: true},
			&core.NumberField{Name: "amount_discount", OnlyInt: true},
			&core.NumberField{Name: "amount_tax", OnlyInt: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		// session ids are unique once assigned; unassigned tickets are
		// excluded so multiple open tickets can predate session creation
		tickets.AddIndex("idx_tickets_session_id", true, "session_id", "session_id != ''")
		tickets.AddIndex("idx_tickets_event_user", false, "event, user", "")
		return app.Save(tickets)
	}, func(app core.App) error {
		for _, name := range []string{"tickets", "events", "event_types"} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				continue
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}

		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}
		for _, name := range []string{"phone", "country", "address", "zip_code", "is_admin", "customer_id"} {
			if f := users.Fields.GetByName(name); f != nil {
				users.Fields.RemoveByName(name)
			}
		}
		return app.Save(users)
	})
}
