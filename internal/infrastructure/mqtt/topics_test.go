package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"default components", Topics{}.Components(), "printer/components"},
		{"default component", Topics{}.Component("bracket"), "printer/components/bracket"},
		{"default wildcard", Topics{}.ComponentsWildcard(), "printer/components/#"},
		{"custom components", NewTopics("farm/p1").Components(), "farm/p1"},
		{"custom trailing slash", NewTopics("farm/p1/").Component("hinge"), "farm/p1/hinge"},
		{"custom wildcard", NewTopics("farm/p1").ComponentsWildcard(), "farm/p1/#"},
		{"dashboard status", Topics{}.DashboardStatus("dash-1"), "printwatch/dashboard/dash-1/status"},
		{"all dashboard status", Topics{}.AllDashboardStatus(), "printwatch/dashboard/+/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopicValidation(t *testing.T) {
	if !validPublishTopic("printer/components") {
		t.Error("validPublishTopic(printer/components) = false")
	}
	for _, bad := range []string{"", "printer/+", "printer/#"} {
		if validPublishTopic(bad) {
			t.Errorf("validPublishTopic(%q) = true", bad)
		}
	}

	for _, good := range []string{"printer/components/#", "+/status", "#"} {
		if !validSubscribeFilter(good) {
			t.Errorf("validSubscribeFilter(%q) = false", good)
		}
	}
	for _, bad := range []string{"", "a/#/b", "a+/b"} {
		if validSubscribeFilter(bad) {
			t.Errorf("validSubscribeFilter(%q) = true", bad)
		}
	}
}
