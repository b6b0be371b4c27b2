package project

import "github.com/faraday/faraday/pkg/models"

// StorageKey is the backend key the snapshot is persisted under.
const StorageKey = "faraday.localProject.v1"

const defaultApp = `import { BrowserRouter, Routes, Route } from "react-router-dom";
import Index from "./pages/Index";
import NotFound from "./pages/NotFound";

export default function App() {
  return (
    <BrowserRouter>
      <Routes>
        <Route path="/" element={<Index />} />
        <Route path="*" element={<NotFound />} />
      </Routes>
    </BrowserRouter>
  );
}
`

const defaultBlink = `// Blink (Arduino)
// Built-in LED is usually on pin 13, or use LED_BUILTIN.

void setup() {
  pinMode(LED_BUILTIN, OUTPUT);
}

void loop() {
  digitalWrite(LED_BUILTIN, HIGH);
  delay(1000);
  digitalWrite(LED_BUILTIN, LOW);
  delay(1000);
}
`

// DefaultState returns the sample project used when nothing usable is
// persisted.
func DefaultState() models.ProjectState {
	return models.ProjectState{
		Files: []models.ProjectFile{
			{Path: "src/App.tsx", Language: models.LanguageTSX, Content: defaultApp},
			{Path: "arduino/blink.ino", Language: models.LanguageArduino, Content: defaultBlink},
		},
		ActivePath: "src/App.tsx",
	}
}
