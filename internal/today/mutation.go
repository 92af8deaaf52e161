package today

import (
	"context"
	"errors"

	launch "github.com/hanpama/gqlservice/internal/launch"
	response "github.com/hanpama/gqlservice/internal/response"
	service "github.com/hanpama/gqlservice/internal/service"
)

// CompleteTaskInput is the input of the completeTask mutation.
type CompleteTaskInput struct {
	ID               response.IDType
	TestTaskState    string
	IsComplete       bool
	ClientMutationID *string
}

// ConvertCompleteTaskInput reads a CompleteTaskInput object. isComplete
// defaults to true.
func ConvertCompleteTaskInput(value response.Value) (CompleteTaskInput, error) {
	if value.Type() != response.Map {
		return CompleteTaskInput{}, errors.New("not a CompleteTaskInput")
	}
	var (
		input CompleteTaskInput
		err   error
	)
	if input.ID, err = service.RequireArgument(value, "id", service.ConvertID); err != nil {
		return CompleteTaskInput{}, err
	}
	state, _, err := service.FindArgument(value, "testTaskState", service.NullableOf(service.ConvertEnum("TaskState", taskStates...)))
	if err != nil {
		return CompleteTaskInput{}, err
	}
	if state != nil {
		input.TestTaskState = *state
	}
	complete, _, err := service.FindArgument(value, "isComplete", service.NullableOf(service.ConvertBool))
	if err != nil {
		return CompleteTaskInput{}, err
	}
	input.IsComplete = complete == nil || *complete
	if input.ClientMutationID, _, err = service.FindArgument(value, "clientMutationId", service.NullableOf(service.ConvertString)); err != nil {
		return CompleteTaskInput{}, err
	}
	return input, nil
}

func (m *Mock) mutationObject() *service.Object {
	return service.NewObject([]string{"Mutation"}, service.ResolverMap{
		"completeTask": func(p service.ResolverParams) future {
			input, err := service.RequireArgument(p.Arguments, "input", ConvertCompleteTaskInput)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return service.ResolveObject(p, launch.Start(p.Launch, func() (*service.Object, error) {
				task := m.completeTask(input)
				return service.NewObject([]string{"CompleteTaskPayload"}, service.ResolverMap{
					"task": func(p service.ResolverParams) future {
						if task == nil {
							return service.ResolveObject(p, launch.Ready[*service.Object](nil))
						}
						return service.ResolveObject(p, launch.Ready(taskObject(task)))
					},
					"clientMutationId": func(p service.ResolverParams) future {
						return service.ResolveNullable(service.ResolveString)(p, launch.Ready(input.ClientMutationID))
					},
				}), nil
			}))
		},
		"setFloat": func(p service.ResolverParams) future {
			value, err := service.RequireArgument(p.Arguments, "value", service.ConvertFloat)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return service.ResolveFloat(p, launch.Ready(m.setFloat(value)))
		},
	})
}

// subscriptionObject serves the subscribe and unsubscribe notifications.
// Deliveries pass their own root object.
func (m *Mock) subscriptionObject() *service.Object {
	return service.NewObject([]string{"Subscription"}, service.ResolverMap{
		"nextAppointmentChange": func(p service.ResolverParams) future {
			m.countNotify(p.ResolverContext)
			appointments := m.loadAppointments(p.State)
			if len(appointments) == 0 {
				return service.ResolveObject(p, launch.Ready[*service.Object](nil))
			}
			return service.ResolveObject(p, launch.Ready(appointmentObject(appointments[0])))
		},
		"nodeChange": func(p service.ResolverParams) future {
			m.countNotify(p.ResolverContext)
			id, err := service.RequireArgument(p.Arguments, "id", service.ConvertID)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return service.ResolveObject(p, launch.Ready(m.findNode(p.State, id)))
		},
	})
}

// DeliverAppointmentChange sends a to every nextAppointmentChange
// subscription.
func DeliverAppointmentChange(ctx context.Context, r *service.Request, a *Appointment) error {
	return r.Deliver(ctx, service.RequestDeliverParams{
		Field: "nextAppointmentChange",
		Subscription: service.NewObject([]string{"Subscription"}, service.ResolverMap{
			"nextAppointmentChange": func(p service.ResolverParams) future {
				return service.ResolveObject(p, launch.Ready(appointmentObject(a)))
			},
		}),
	})
}

// DeliverNodeChange sends the node found by m to the nodeChange
// subscriptions registered for id.
func DeliverNodeChange(ctx context.Context, r *service.Request, m *Mock, id response.IDType) error {
	node := m.findNode(nil, id)
	if node == nil {
		return service.NewSchemaError("Unknown node id: " + id.String())
	}
	return r.Deliver(ctx, service.RequestDeliverParams{
		Field: "nodeChange",
		Filter: &service.SubscriptionFilter{Arguments: service.ArgumentFilter{
			Match: func(arguments response.Value) bool {
				registered, err := service.RequireArgument(arguments, "id", service.ConvertID)
				return err == nil && registered.Equal(id)
			},
		}},
		Subscription: service.NewObject([]string{"Subscription"}, service.ResolverMap{
			"nodeChange": func(p service.ResolverParams) future {
				return service.ResolveObject(p, launch.Ready(node))
			},
		}),
	})
}
