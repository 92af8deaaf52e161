// Package today is a small calendar and task service built on the service
// package. The CLI serves it and tests use it as a realistic fixture.
package today

import (
	_ "embed"
	"sync"

	"google.golang.org/protobuf/types/known/timestamppb"

	introspection "github.com/hanpama/gqlservice/internal/introspection"
	response "github.com/hanpama/gqlservice/internal/response"
	schema "github.com/hanpama/gqlservice/internal/schema"
	service "github.com/hanpama/gqlservice/internal/service"
)

//go:embed schema.graphql
var SDL string

var (
	FakeAppointmentID = response.IDFromBytes([]byte("fakeAppointmentId"))
	FakeTaskID        = response.IDFromBytes([]byte("fakeTaskId"))
	FakeFolderID      = response.IDFromBytes([]byte("fakeFolderId"))
)

// Schema loads the service schema.
func Schema() (*schema.Schema, error) {
	return schema.BuildFromSDL(SDL)
}

// Appointment is a calendar entry. Scheduled, when set, is sent as the
// DateTime instead of When.
type Appointment struct {
	ID        response.IDType
	When      string
	Scheduled *timestamppb.Timestamp
	Subject   string
	IsNow     bool
}

type Task struct {
	ID         response.IDType
	Title      string
	IsComplete bool
	State      string
}

type Folder struct {
	ID          response.IDType
	Name        string
	UnreadCount int
}

// LoadCounts reports how often each list was loaded.
type LoadCounts struct {
	Appointments int
	Tasks        int
	UnreadCounts int
}

// CapturedParams holds the directives seen by one nested field resolver.
type CapturedParams struct {
	Operation          service.Directives
	FragmentDefinition service.Directives
	FragmentSpread     service.Directives
	InlineFragment     service.Directives
	Field              service.Directives
}

// Mock is the in-memory data behind the service.
type Mock struct {
	mu           sync.Mutex
	appointments []*Appointment
	tasks        []*Task
	folders      []*Folder
	loads        LoadCounts
	float        float64
	captured     []CapturedParams
	notify       map[service.ResolverContext]int
}

// NewMock returns the fixture data set: one appointment, one task and one
// folder.
func NewMock() *Mock {
	return &Mock{
		appointments: []*Appointment{{ID: FakeAppointmentID, When: "tomorrow", Subject: "Lunch?"}},
		tasks:        []*Task{{ID: FakeTaskID, Title: "Don't forget", IsComplete: true, State: "New"}},
		folders:      []*Folder{{ID: FakeFolderID, Name: "\"Fake\" Inbox", UnreadCount: 3}},
		notify:       make(map[service.ResolverContext]int),
	}
}

// RequestState caches the loaded lists for one request. Pass a fresh value
// as the request State to load each list at most once.
type RequestState struct {
	ID int

	mu           sync.Mutex
	appointments []*Appointment
	tasks        []*Task
	folders      []*Folder
}

func (m *Mock) Loads() LoadCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

func (m *Mock) Float() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.float
}

// Captured returns the directives recorded by nested fields, outermost
// first.
func (m *Mock) Captured() []CapturedParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CapturedParams(nil), m.captured...)
}

// SubscriptionResolves counts how often a subscription root field resolved
// with the given context.
func (m *Mock) SubscriptionResolves(c service.ResolverContext) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notify[c]
}

func (m *Mock) loadAppointments(state any) []*Appointment {
	rs, _ := state.(*RequestState)
	if rs != nil {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		if rs.appointments != nil {
			return rs.appointments
		}
	}
	m.mu.Lock()
	m.loads.Appointments++
	out := append([]*Appointment(nil), m.appointments...)
	m.mu.Unlock()
	if rs != nil {
		rs.appointments = out
	}
	return out
}

func (m *Mock) loadTasks(state any) []*Task {
	rs, _ := state.(*RequestState)
	if rs != nil {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		if rs.tasks != nil {
			return rs.tasks
		}
	}
	m.mu.Lock()
	m.loads.Tasks++
	out := make([]*Task, len(m.tasks))
	for i, t := range m.tasks {
		copied := *t
		out[i] = &copied
	}
	m.mu.Unlock()
	if rs != nil {
		rs.tasks = out
	}
	return out
}

func (m *Mock) loadFolders(state any) []*Folder {
	rs, _ := state.(*RequestState)
	if rs != nil {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		if rs.folders != nil {
			return rs.folders
		}
	}
	m.mu.Lock()
	m.loads.UnreadCounts++
	out := append([]*Folder(nil), m.folders...)
	m.mu.Unlock()
	if rs != nil {
		rs.folders = out
	}
	return out
}

// completeTask updates the stored task and returns a copy, nil when no task
// has the id.
func (m *Mock) completeTask(input CompleteTaskInput) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if !t.ID.Equal(input.ID) {
			continue
		}
		t.IsComplete = input.IsComplete
		if input.TestTaskState != "" {
			t.State = input.TestTaskState
		}
		copied := *t
		return &copied
	}
	return nil
}

func (m *Mock) setFloat(v float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.float = v
	return v
}

func (m *Mock) capture(p service.ResolverParams) {
	top := func(s *service.DirectiveStack) service.Directives {
		if s == nil {
			return nil
		}
		return s.Directives
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captured = append(m.captured, CapturedParams{
		Operation:          p.OperationDirectives,
		FragmentDefinition: top(p.FragmentDefinitionDirectives),
		FragmentSpread:     top(p.FragmentSpreadDirectives),
		InlineFragment:     top(p.InlineFragmentDirectives),
		Field:              p.FieldDirectives,
	})
}

func (m *Mock) countNotify(c service.ResolverContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify[c]++
}

// NewRequest returns the service over m with introspection enabled.
func NewRequest(m *Mock, opts ...service.RequestOption) (*service.Request, error) {
	sch, err := Schema()
	if err != nil {
		return nil, err
	}
	return service.NewRequest(m.Operations(), sch,
		append([]service.RequestOption{service.WithIntrospection(introspection.MetaFields)}, opts...)...), nil
}

// Operations returns the root objects over m.
func (m *Mock) Operations() service.Operations {
	return service.Operations{
		Query:        m.queryObject(),
		Mutation:     m.mutationObject(),
		Subscription: m.subscriptionObject(),
	}
}
