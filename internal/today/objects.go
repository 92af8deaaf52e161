package today

import (
	"errors"

	launch "github.com/hanpama/gqlservice/internal/launch"
	response "github.com/hanpama/gqlservice/internal/response"
	service "github.com/hanpama/gqlservice/internal/service"
)

var taskStates = []string{"New", "Started", "Complete", "Unassigned"}

type future = *launch.Future[service.ResolverResult]

func (m *Mock) queryObject() *service.Object {
	return service.NewObject([]string{"Query"}, service.ResolverMap{
		"node": func(p service.ResolverParams) future {
			id, err := service.RequireArgument(p.Arguments, "id", service.ConvertID)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return service.ResolveObject(p, launch.Start(p.Launch, func() (*service.Object, error) {
				return m.findNode(p.State, id), nil
			}))
		},
		"appointments": func(p service.ResolverParams) future {
			page, err := readPage(p)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return service.ResolveObject(p, launch.Start(p.Launch, func() (*service.Object, error) {
				return connection("Appointment", m.loadAppointments(p.State), page,
					func(a *Appointment) response.IDType { return a.ID }, appointmentObject), nil
			}))
		},
		"tasks": func(p service.ResolverParams) future {
			page, err := readPage(p)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return service.ResolveObject(p, launch.Start(p.Launch, func() (*service.Object, error) {
				return connection("Task", m.loadTasks(p.State), page,
					func(t *Task) response.IDType { return t.ID }, taskObject), nil
			}))
		},
		"unreadCounts": func(p service.ResolverParams) future {
			page, err := readPage(p)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return service.ResolveObject(p, launch.Start(p.Launch, func() (*service.Object, error) {
				return connection("Folder", m.loadFolders(p.State), page,
					func(f *Folder) response.IDType { return f.ID }, folderObject), nil
			}))
		},
		"appointmentsById": func(p service.ResolverParams) future {
			ids, found, err := service.FindArgument(p.Arguments, "ids", service.ListOf(service.ConvertID))
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			if !found {
				ids = []response.IDType{FakeAppointmentID}
			}
			return m.resolveByID(p, ids, func(id response.IDType) *service.Object {
				for _, a := range m.loadAppointments(p.State) {
					if a.ID.Equal(id) {
						return appointmentObject(a)
					}
				}
				return nil
			})
		},
		"tasksById": func(p service.ResolverParams) future {
			ids, err := service.RequireArgument(p.Arguments, "ids", service.ListOf(service.ConvertID))
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return m.resolveByID(p, ids, func(id response.IDType) *service.Object {
				for _, t := range m.loadTasks(p.State) {
					if t.ID.Equal(id) {
						return taskObject(t)
					}
				}
				return nil
			})
		},
		"unreadCountsById": func(p service.ResolverParams) future {
			ids, err := service.RequireArgument(p.Arguments, "ids", service.ListOf(service.ConvertID))
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return m.resolveByID(p, ids, func(id response.IDType) *service.Object {
				for _, f := range m.loadFolders(p.State) {
					if f.ID.Equal(id) {
						return folderObject(f)
					}
				}
				return nil
			})
		},
		"anyType": func(p service.ResolverParams) future {
			ids, err := service.RequireArgument(p.Arguments, "ids", service.ListOf(service.ConvertID))
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return m.resolveByID(p, ids, func(id response.IDType) *service.Object {
				return m.findNode(p.State, id)
			})
		},
		"nested": func(p service.ResolverParams) future {
			m.capture(p)
			return service.ResolveObject(p, launch.Ready(m.nestedObject(1)))
		},
		"testTaskState": func(p service.ResolverParams) future {
			return service.ResolveEnum("TaskState", taskStates...)(p, launch.Ready("Unassigned"))
		},
	})
}

func (m *Mock) resolveByID(p service.ResolverParams, ids []response.IDType, find func(response.IDType) *service.Object) future {
	return service.ResolveList(service.ResolveObject)(p, launch.Start(p.Launch, func() ([]*service.Object, error) {
		out := make([]*service.Object, len(ids))
		for i, id := range ids {
			out[i] = find(id)
		}
		return out, nil
	}))
}

// findNode looks id up among appointments, tasks and folders.
func (m *Mock) findNode(state any, id response.IDType) *service.Object {
	for _, a := range m.loadAppointments(state) {
		if a.ID.Equal(id) {
			return appointmentObject(a)
		}
	}
	for _, t := range m.loadTasks(state) {
		if t.ID.Equal(id) {
			return taskObject(t)
		}
	}
	for _, f := range m.loadFolders(state) {
		if f.ID.Equal(id) {
			return folderObject(f)
		}
	}
	return nil
}

func (m *Mock) nestedObject(depth int) *service.Object {
	return service.NewObject([]string{"NestedType"}, service.ResolverMap{
		"depth": func(p service.ResolverParams) future {
			return service.ResolveInt(p, launch.Ready(depth))
		},
		"nested": func(p service.ResolverParams) future {
			m.capture(p)
			return service.ResolveObject(p, launch.Ready(m.nestedObject(depth+1)))
		},
	})
}

type page struct {
	first *int
	after *response.IDType
}

func readPage(p service.ResolverParams) (page, error) {
	first, _, err := service.FindArgument(p.Arguments, "first", service.NullableOf(service.ConvertInt))
	if err != nil {
		return page{}, err
	}
	after, _, err := service.FindArgument(p.Arguments, "after", service.NullableOf(service.ConvertID))
	if err != nil {
		return page{}, err
	}
	if first != nil && *first < 0 {
		return page{}, service.NewSchemaError("Invalid argument: first error: must not be negative")
	}
	return page{first: first, after: after}, nil
}

// connection pages items and wraps them in a Connection object named after
// the node type.
func connection[T any](nodeType string, items []T, pg page, id func(T) response.IDType, node func(T) *service.Object) *service.Object {
	start := 0
	if pg.after != nil {
		for i, item := range items {
			if id(item).Equal(*pg.after) {
				start = i + 1
				break
			}
		}
	}
	end := len(items)
	if pg.first != nil && start+*pg.first < end {
		end = start + *pg.first
	}

	edges := make([]*service.Object, 0, end-start)
	for _, item := range items[start:end] {
		nodeObject, cursor := node(item), id(item)
		edges = append(edges, service.NewObject([]string{nodeType + "Edge"}, service.ResolverMap{
			"node": func(p service.ResolverParams) future {
				return service.ResolveObject(p, launch.Ready(nodeObject))
			},
			"cursor": func(p service.ResolverParams) future {
				return service.ResolveID(p, launch.Ready(cursor))
			},
		}))
	}
	pageInfo := service.NewObject([]string{"PageInfo"}, service.ResolverMap{
		"hasNextPage":     boolField(end < len(items)),
		"hasPreviousPage": boolField(start > 0),
	})
	return service.NewObject([]string{nodeType + "Connection"}, service.ResolverMap{
		"pageInfo": func(p service.ResolverParams) future {
			return service.ResolveObject(p, launch.Ready(pageInfo))
		},
		"edges": func(p service.ResolverParams) future {
			return service.ResolveList(service.ResolveObject)(p, launch.Ready(edges))
		},
	})
}

func appointmentObject(a *Appointment) *service.Object {
	return service.NewObject([]string{"Appointment", "Node", "UnionType"}, service.ResolverMap{
		"id": idField(a.ID),
		"when": func(p service.ResolverParams) future {
			if a.Scheduled != nil {
				return service.ResolveScalar(p, launch.Ready(response.NewProto(a.Scheduled)))
			}
			return service.ResolveScalar(p, launch.Ready(response.NewString(a.When)))
		},
		"subject": stringField(a.Subject),
		"isNow":   boolField(a.IsNow),
		"forceError": func(service.ResolverParams) future {
			return launch.Failed[service.ResolverResult](errors.New("this error was forced"))
		},
	})
}

func taskObject(t *Task) *service.Object {
	return service.NewObject([]string{"Task", "Node", "UnionType"}, service.ResolverMap{
		"id":         idField(t.ID),
		"title":      stringField(t.Title),
		"isComplete": boolField(t.IsComplete),
	})
}

func folderObject(f *Folder) *service.Object {
	return service.NewObject([]string{"Folder", "Node", "UnionType"}, service.ResolverMap{
		"id":   idField(f.ID),
		"name": stringField(f.Name),
		"unreadCount": func(p service.ResolverParams) future {
			return service.ResolveInt(p, launch.Ready(f.UnreadCount))
		},
	})
}

func idField(id response.IDType) service.Resolver {
	return func(p service.ResolverParams) future {
		return service.ResolveID(p, launch.Ready(id))
	}
}

func stringField(s string) service.Resolver {
	return func(p service.ResolverParams) future {
		return service.ResolveString(p, launch.Ready(s))
	}
}

func boolField(b bool) service.Resolver {
	return func(p service.ResolverParams) future {
		return service.ResolveBool(p, launch.Ready(b))
	}
}
